// internal/circulation/repository.go
package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"shelfkeeper/internal/catalog"
	"shelfkeeper/internal/notification"
)

// BookRepository is the locked view of the books table.
type BookRepository interface {
	GetForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Book, error)
	AdjustAvailable(ctx context.Context, id uuid.UUID, delta int) (int, error)
	SetCopies(ctx context.Context, id uuid.UUID, total, available int) error
	UpdateDetails(ctx context.Context, b *catalog.Book) error
}

type UserRepository interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type ReservationRepository interface {
	Create(ctx context.Context, r *Reservation) error
	Get(ctx context.Context, id uuid.UUID) (*Reservation, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Reservation, error)
	// FindActiveForUpdate returns dbx.ErrNotFound when the user holds no
	// active reservation on the book.
	FindActiveForUpdate(ctx context.Context, userID, bookID uuid.UUID) (*Reservation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status ReservationStatus) error
	ListExpired(ctx context.Context, now time.Time) ([]*Reservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Reservation, error)
}

type BorrowingRepository interface {
	Create(ctx context.Context, b *Borrowing) error
	Get(ctx context.Context, id uuid.UUID) (*Borrowing, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Borrowing, error)
	MarkReturned(ctx context.Context, id uuid.UUID, at time.Time) error
	ListOverdueCandidates(ctx context.Context, now time.Time) ([]*Borrowing, error)
	// FlagOverdue sets is_overdue on an open, unflagged borrowing and
	// reports whether this call changed the row.
	FlagOverdue(ctx context.Context, id uuid.UUID) (bool, error)
	ListDueBetween(ctx context.Context, after, until time.Time) ([]*Borrowing, error)
	List(ctx context.Context, userID *uuid.UUID) ([]*Borrowing, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	CreateOnce(ctx context.Context, n *notification.Notification) (bool, error)
}

type EventAppender interface {
	Append(ctx context.Context, aggregateID uuid.UUID, aggregateType, eventType string, data any) error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Books() BookRepository
	Users() UserRepository
	Reservations() ReservationRepository
	Borrowings() BorrowingRepository
	Notifications() NotificationRepository
	Events() EventAppender
}

// Store runs transactions and serves non-locking reads.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Reservations() ReservationRepository
	Borrowings() BorrowingRepository
}
