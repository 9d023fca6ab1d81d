// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, in NewBook) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	ListBooks(ctx context.Context, f Filter) ([]*Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, upd BookUpdate) (*Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
}

// Repository is the catalog's persistence.
type Repository interface {
	Create(ctx context.Context, b *Book) error
	Get(ctx context.Context, id uuid.UUID) (*Book, error)
	List(ctx context.Context, f Filter) ([]*Book, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Inventory edits a book under its row lock. The circulation engine
// implements it so the copy counter has a single writer. edit reports
// whether it changed any details; totalCopies, when set, resizes the
// inventory in the same transaction.
type Inventory interface {
	ReviseBook(ctx context.Context, bookID uuid.UUID, edit func(*Book) (bool, error), totalCopies *int) error
}
