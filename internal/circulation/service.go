// internal/circulation/service.go
package circulation

import (
	"context"

	"github.com/google/uuid"

	"shelfkeeper/internal/catalog"
)

// Service defines the interface for the circulation service. It is the only
// writer of book copy counters, reservation status and borrowing state.
type Service interface {
	CreateReservation(ctx context.Context, userID, bookID uuid.UUID) (*Reservation, error)
	CancelReservation(ctx context.Context, userID, reservationID uuid.UUID) (*Reservation, error)
	ListReservations(ctx context.Context, userID uuid.UUID) ([]*Reservation, error)
	ExpireReservations(ctx context.Context) (int, error)

	CreateBorrowing(ctx context.Context, userID, bookID uuid.UUID) (*Borrowing, error)
	ReturnBorrowing(ctx context.Context, borrowingID uuid.UUID) (*Borrowing, error)
	// ListBorrowings returns every borrowing when userID is nil.
	ListBorrowings(ctx context.Context, userID *uuid.UUID) ([]*Borrowing, error)

	SweepOverdue(ctx context.Context) (int, error)
	SweepDueSoon(ctx context.Context) (*DueSoonResult, error)

	ResizeInventory(ctx context.Context, bookID uuid.UUID, totalCopies int) error
	// ReviseBook edits a book's details and optionally its total copies
	// under the book lock. edit reports whether it changed anything.
	ReviseBook(ctx context.Context, bookID uuid.UUID, edit func(*catalog.Book) (bool, error), totalCopies *int) error
}
