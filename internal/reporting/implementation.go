// internal/reporting/implementation.go
package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"shelfkeeper/internal/apperr"
	"shelfkeeper/internal/circulation"
	"shelfkeeper/internal/dbx"
	"shelfkeeper/internal/eventlog"
	"shelfkeeper/internal/logging"
)

var (
	ErrUserNotFound = apperr.NotFound("user not found")
	ErrBookNotFound = apperr.NotFound("book not found")
)

type service struct {
	repo    Repository
	sweeper OverdueSweeper
	events  EventLoader
	logger  logging.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// Option configures the reporting service.
type Option func(*service)

// WithClock overrides the time source used for days-overdue.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(repo Repository, sweeper OverdueSweeper, events EventLoader, logger logging.Logger, opts ...Option) Service {
	s := &service{
		repo:    repo,
		sweeper: sweeper,
		events:  events,
		logger:  logger,
		tracer:  otel.Tracer("shelfkeeper/reporting"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) PopularBooks(ctx context.Context) ([]PopularBook, error) {
	ctx, span := s.tracer.Start(ctx, "reporting.popular_books")
	defer span.End()

	books, err := s.repo.PopularBooks(ctx, PopularBooksLimit)
	if err != nil {
		return nil, fmt.Errorf("popular books: %w", err)
	}
	return books, nil
}

// OverdueReport runs the overdue sweep and then lists every open borrowing
// past its due date with whole days overdue.
func (s *service) OverdueReport(ctx context.Context) ([]OverdueEntry, error) {
	ctx, span := s.tracer.Start(ctx, "reporting.overdue_report")
	defer span.End()

	flagged, err := s.sweeper.SweepOverdue(ctx)
	if err != nil {
		return nil, fmt.Errorf("sweep overdue: %w", err)
	}

	now := s.now().UTC()
	entries, err := s.repo.OpenOverdue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list overdue: %w", err)
	}
	for i := range entries {
		entries[i].DaysOverdue = circulation.DaysOverdue(now, entries[i].Borrowing.DueDate)
	}

	span.SetAttributes(attribute.Int("overdue.flagged", flagged), attribute.Int("overdue.total", len(entries)))
	s.logger.Debug(ctx, "overdue report built", "flagged", flagged, "total", len(entries))
	return entries, nil
}

func (s *service) UserHistory(ctx context.Context, userID uuid.UUID) (*UserHistory, error) {
	ctx, span := s.tracer.Start(ctx, "reporting.user_history",
		trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	user, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, dbx.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	history, err := s.repo.BorrowingsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list borrowings: %w", err)
	}

	open := 0
	for _, b := range history {
		if b.State() == circulation.BorrowingOpen {
			open++
		}
	}
	return &UserHistory{
		User:              user,
		BorrowingHistory:  history,
		TotalBorrowed:     len(history),
		CurrentlyBorrowed: open,
	}, nil
}

// AllReservations lists every reservation, active ones first and then
// newest first.
func (s *service) AllReservations(ctx context.Context) ([]ReservationView, error) {
	list, err := s.repo.AllReservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return list, nil
}

// BookEvents returns a book's circulation log, oldest first.
func (s *service) BookEvents(ctx context.Context, bookID uuid.UUID) ([]eventlog.Event, error) {
	ok, err := s.repo.BookExists(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("lookup book: %w", err)
	}
	if !ok {
		return nil, ErrBookNotFound
	}
	events, err := s.events.Load(ctx, bookID, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return events, nil
}
