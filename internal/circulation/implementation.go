// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"shelfkeeper/internal/apperr"
	"shelfkeeper/internal/catalog"
	"shelfkeeper/internal/dbx"
	"shelfkeeper/internal/logging"
	"shelfkeeper/internal/notification"
)

const (
	HoldPeriod    = 3 * 24 * time.Hour
	LoanPeriod    = 14 * 24 * time.Hour
	DueSoonWindow = 3 * 24 * time.Hour
)

// Book and inventory errors are the catalog's.
var (
	ErrBookNotFound  = catalog.ErrBookNotFound
	ErrCopiesOut     = catalog.ErrCopiesOut
	ErrNegativeTotal = catalog.ErrNegativeTotal
)

var (
	ErrUserNotFound        = apperr.NotFound("user not found")
	ErrReservationNotFound = apperr.NotFound("reservation not found")
	ErrBorrowingNotFound   = apperr.NotFound("borrowing not found")
	ErrAlreadyReserved     = apperr.Conflict("you already have an active reservation for this book")
	ErrUnavailable         = apperr.Unavailable("book not available")
	ErrNotOwner            = apperr.Forbidden("reservation belongs to another user")
	ErrReservationInactive = apperr.InvalidState("reservation is not active")
	ErrAlreadyReturned     = apperr.InvalidState("book already returned")
)

// service implements the Service interface.
type service struct {
	store   Store
	logger  logging.Logger
	tracer  trace.Tracer
	metrics *engineMetrics
	now     func() time.Time
}

// Option configures the circulation service.
type Option func(*service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithMeter records engine counters on m instead of the global meter.
func WithMeter(m metric.Meter) Option {
	return func(s *service) { s.metrics = newEngineMetrics(m) }
}

// NewService creates a new circulation service instance.
func NewService(store Store, logger logging.Logger, opts ...Option) Service {
	s := &service{
		store:  store,
		logger: logger,
		tracer: otel.Tracer("shelfkeeper/circulation"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = newEngineMetrics(otel.Meter("shelfkeeper/circulation"))
	}
	return s
}

func (s *service) clock() time.Time {
	return s.now().UTC()
}

// span starts a span and returns a finisher that records err on it.
func (s *service) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			s.metrics.rejected(ctx, name, err)
		}
		span.End()
	}
}

func lockBook(ctx context.Context, tx Tx, id uuid.UUID) (*catalog.Book, error) {
	book, err := tx.Books().GetForUpdate(ctx, id)
	if errors.Is(err, dbx.ErrNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock book: %w", err)
	}
	return book, nil
}

// requireUser fails with ErrUserNotFound for a user deleted after their
// token was issued.
func requireUser(ctx context.Context, tx Tx, userID uuid.UUID) error {
	exists, err := tx.Users().Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}
	return nil
}

func notify(ctx context.Context, tx Tx, n *notification.Notification) error {
	if err := tx.Notifications().Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func record(ctx context.Context, tx Tx, bookID uuid.UUID, eventType string, data any) error {
	if err := tx.Events().Append(ctx, bookID, AggregateBook, eventType, data); err != nil {
		return fmt.Errorf("append %s: %w", eventType, err)
	}
	return nil
}

// CreateReservation holds one copy of bookID for userID. A second active
// reservation on the same book is a Conflict even when no copies remain.
func (s *service) CreateReservation(ctx context.Context, userID, bookID uuid.UUID) (res *Reservation, err error) {
	ctx, end := s.span(ctx, "circulation.create_reservation",
		attribute.String("user.id", userID.String()),
		attribute.String("book.id", bookID.String()))
	defer func() { end(err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		book, err := lockBook(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}

		_, err = tx.Reservations().FindActiveForUpdate(ctx, userID, bookID)
		switch {
		case err == nil:
			return ErrAlreadyReserved
		case !errors.Is(err, dbx.ErrNotFound):
			return fmt.Errorf("find active reservation: %w", err)
		}

		if book.AvailableCopies <= 0 {
			return ErrUnavailable
		}
		available, err := tx.Books().AdjustAvailable(ctx, bookID, -1)
		if err != nil {
			return fmt.Errorf("decrement available copies: %w", err)
		}

		now := s.clock()
		res = &Reservation{
			ID:         uuid.New(),
			UserID:     userID,
			BookID:     bookID,
			BookTitle:  book.Title,
			Status:     ReservationActive,
			ReservedAt: now,
			ExpiresAt:  now.Add(HoldPeriod),
		}
		if err := tx.Reservations().Create(ctx, res); err != nil {
			if dbx.IsUniqueViolation(err) {
				return ErrAlreadyReserved
			}
			return fmt.Errorf("create reservation: %w", err)
		}

		if err := notify(ctx, tx, notification.New(userID, notification.TypeReservation,
			fmt.Sprintf(`You have reserved "%s". Please pick it up within 3 days.`, book.Title), now)); err != nil {
			return err
		}
		return record(ctx, tx, bookID, EventReservationCreated,
			ReservationEvent{ReservationID: res.ID, UserID: userID, AvailableCopies: available})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.transition(ctx, EventReservationCreated)
	s.logger.Info(ctx, "reservation created", "reservation_id", res.ID, "book_id", bookID, "user_id", userID)
	return res, nil
}

// CancelReservation cancels the caller's own active reservation and
// releases its copy.
func (s *service) CancelReservation(ctx context.Context, userID, reservationID uuid.UUID) (res *Reservation, err error) {
	ctx, end := s.span(ctx, "circulation.cancel_reservation",
		attribute.String("reservation.id", reservationID.String()))
	defer func() { end(err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		// Resolve the book first so the book lock is taken before the
		// reservation row lock, the same order every other operation uses.
		peek, err := s.getReservation(ctx, tx, reservationID, false)
		if err != nil {
			return err
		}
		if _, err := lockBook(ctx, tx, peek.BookID); err != nil {
			return err
		}
		res, err = s.getReservation(ctx, tx, reservationID, true)
		if err != nil {
			return err
		}

		if res.UserID != userID {
			return ErrNotOwner
		}
		if !res.Status.CanTransition(ReservationCancelled) {
			return ErrReservationInactive
		}

		if err := tx.Reservations().UpdateStatus(ctx, res.ID, ReservationCancelled); err != nil {
			return fmt.Errorf("cancel reservation: %w", err)
		}
		available, err := tx.Books().AdjustAvailable(ctx, res.BookID, 1)
		if err != nil {
			return fmt.Errorf("increment available copies: %w", err)
		}
		res.Status = ReservationCancelled

		return record(ctx, tx, res.BookID, EventReservationCancelled,
			ReservationEvent{ReservationID: res.ID, UserID: userID, AvailableCopies: available})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.transition(ctx, EventReservationCancelled)
	s.logger.Info(ctx, "reservation cancelled", "reservation_id", res.ID, "book_id", res.BookID)
	return res, nil
}

// getReservation reads a reservation, locking it when lock is set. The
// unlocked read is only used to find which book to lock first.
func (s *service) getReservation(ctx context.Context, tx Tx, id uuid.UUID, lock bool) (*Reservation, error) {
	var (
		res *Reservation
		err error
	)
	if lock {
		res, err = tx.Reservations().GetForUpdate(ctx, id)
	} else {
		res, err = tx.Reservations().Get(ctx, id)
	}
	if errors.Is(err, dbx.ErrNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// ListReservations returns the user's reservations, newest first.
func (s *service) ListReservations(ctx context.Context, userID uuid.UUID) ([]*Reservation, error) {
	list, err := s.store.Reservations().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return list, nil
}

// ExpireReservations cancels active reservations whose hold has lapsed and
// returns how many were expired.
func (s *service) ExpireReservations(ctx context.Context) (n int, err error) {
	ctx, end := s.span(ctx, "circulation.expire_reservations")
	defer func() { end(err) }()

	now := s.clock()
	candidates, err := s.store.Reservations().ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired reservations: %w", err)
	}

	for _, c := range candidates {
		expired := false
		err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			book, err := lockBook(ctx, tx, c.BookID)
			if err != nil {
				return err
			}
			res, err := s.getReservation(ctx, tx, c.ID, true)
			if err != nil {
				return err
			}
			if res.Status != ReservationActive || !res.ExpiresAt.Before(now) {
				return nil
			}

			if err := tx.Reservations().UpdateStatus(ctx, res.ID, ReservationCancelled); err != nil {
				return fmt.Errorf("expire reservation: %w", err)
			}
			available, err := tx.Books().AdjustAvailable(ctx, res.BookID, 1)
			if err != nil {
				return fmt.Errorf("increment available copies: %w", err)
			}
			if err := notify(ctx, tx, notification.New(res.UserID, notification.TypeReservation,
				fmt.Sprintf(`Your reservation for "%s" has expired.`, book.Title), now)); err != nil {
				return err
			}
			expired = true
			return record(ctx, tx, res.BookID, EventReservationExpired,
				ReservationEvent{ReservationID: res.ID, UserID: res.UserID, AvailableCopies: available})
		})
		if errors.Is(err, ErrBookNotFound) || errors.Is(err, ErrReservationNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		if expired {
			n++
			s.metrics.transition(ctx, EventReservationExpired)
		}
	}

	if n > 0 {
		s.logger.Info(ctx, "reservations expired", "count", n)
	}
	return n, nil
}
