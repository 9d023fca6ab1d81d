// internal/reporting/service.go
package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"

	"shelfkeeper/internal/circulation"
	"shelfkeeper/internal/eventlog"
	"shelfkeeper/internal/membership"
)

// Service answers the read-only admin reports.
type Service interface {
	PopularBooks(ctx context.Context) ([]PopularBook, error)
	OverdueReport(ctx context.Context) ([]OverdueEntry, error)
	UserHistory(ctx context.Context, userID uuid.UUID) (*UserHistory, error)
	AllReservations(ctx context.Context) ([]ReservationView, error)
	BookEvents(ctx context.Context, bookID uuid.UUID) ([]eventlog.Event, error)
}

// Repository runs the report queries.
type Repository interface {
	PopularBooks(ctx context.Context, limit int) ([]PopularBook, error)
	OpenOverdue(ctx context.Context, now time.Time) ([]OverdueEntry, error)
	GetUser(ctx context.Context, id uuid.UUID) (*membership.User, error)
	BorrowingsByUser(ctx context.Context, userID uuid.UUID) ([]*circulation.Borrowing, error)
	AllReservations(ctx context.Context) ([]ReservationView, error)
	BookExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// OverdueSweeper flags overdue borrowings before the overdue report is
// read.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (int, error)
}

// EventLoader reads a book's circulation events.
type EventLoader interface {
	Load(ctx context.Context, aggregateID uuid.UUID, fromVersion, toVersion int) ([]eventlog.Event, error)
}
