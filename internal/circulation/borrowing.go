// internal/circulation/borrowing.go
package circulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"shelfkeeper/internal/dbx"
	"shelfkeeper/internal/notification"
)

// CreateBorrowing checks a book out to a user. An active reservation by the
// same user is fulfilled and its held copy is used; otherwise a free copy
// is taken.
func (s *service) CreateBorrowing(ctx context.Context, userID, bookID uuid.UUID) (b *Borrowing, err error) {
	ctx, end := s.span(ctx, "circulation.create_borrowing",
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

		var fulfilled *uuid.UUID
		available := book.AvailableCopies

		res, err := tx.Reservations().FindActiveForUpdate(ctx, userID, bookID)
		switch {
		case err == nil:
			if err := tx.Reservations().UpdateStatus(ctx, res.ID, ReservationFulfilled); err != nil {
				return fmt.Errorf("fulfil reservation: %w", err)
			}
			fulfilled = &res.ID
		case errors.Is(err, dbx.ErrNotFound):
			if book.AvailableCopies <= 0 {
				return ErrUnavailable
			}
			if available, err = tx.Books().AdjustAvailable(ctx, bookID, -1); err != nil {
				return fmt.Errorf("decrement available copies: %w", err)
			}
		default:
			return fmt.Errorf("find active reservation: %w", err)
		}

		now := s.clock()
		b = &Borrowing{
			ID:         uuid.New(),
			UserID:     userID,
			BookID:     bookID,
			BookTitle:  book.Title,
			BorrowedAt: now,
			DueDate:    now.Add(LoanPeriod),
		}
		if err := tx.Borrowings().Create(ctx, b); err != nil {
			return fmt.Errorf("create borrowing: %w", err)
		}

		if err := notify(ctx, tx, notification.New(userID, notification.TypeDueDate,
			fmt.Sprintf(`You have borrowed "%s". Due date: %s`, book.Title, b.DueDate.Format("2006-01-02")), now)); err != nil {
			return err
		}
		if fulfilled != nil {
			if err := record(ctx, tx, bookID, EventReservationFulfilled,
				ReservationEvent{ReservationID: *fulfilled, UserID: userID, AvailableCopies: available}); err != nil {
				return err
			}
		}
		return record(ctx, tx, bookID, EventBookBorrowed, BorrowingEvent{
			BorrowingID:     b.ID,
			UserID:          userID,
			DueDate:         b.DueDate,
			ReservationID:   fulfilled,
			AvailableCopies: available,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.transition(ctx, EventBookBorrowed)
	s.logger.Info(ctx, "book borrowed", "borrowing_id", b.ID, "book_id", bookID, "user_id", userID)
	return b, nil
}

// ReturnBorrowing closes an open borrowing and releases its copy.
func (s *service) ReturnBorrowing(ctx context.Context, borrowingID uuid.UUID) (b *Borrowing, err error) {
	ctx, end := s.span(ctx, "circulation.return_borrowing",
		attribute.String("borrowing.id", borrowingID.String()))
	defer func() { end(err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		peek, err := s.getBorrowing(ctx, tx, borrowingID, false)
		if err != nil {
			return err
		}
		if _, err := lockBook(ctx, tx, peek.BookID); err != nil {
			return err
		}
		b, err = s.getBorrowing(ctx, tx, borrowingID, true)
		if err != nil {
			return err
		}
		if b.State() == BorrowingClosed {
			return ErrAlreadyReturned
		}

		now := s.clock()
		if err := tx.Borrowings().MarkReturned(ctx, b.ID, now); err != nil {
			return fmt.Errorf("mark returned: %w", err)
		}
		available, err := tx.Books().AdjustAvailable(ctx, b.BookID, 1)
		if err != nil {
			return fmt.Errorf("increment available copies: %w", err)
		}
		b.ReturnedAt = &now

		return record(ctx, tx, b.BookID, EventBookReturned, BorrowingEvent{
			BorrowingID:     b.ID,
			UserID:          b.UserID,
			DueDate:         b.DueDate,
			AvailableCopies: available,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.transition(ctx, EventBookReturned)
	s.logger.Info(ctx, "book returned", "borrowing_id", b.ID, "book_id", b.BookID)
	return b, nil
}

func (s *service) getBorrowing(ctx context.Context, tx Tx, id uuid.UUID, lock bool) (*Borrowing, error) {
	var (
		b   *Borrowing
		err error
	)
	if lock {
		b, err = tx.Borrowings().GetForUpdate(ctx, id)
	} else {
		b, err = tx.Borrowings().Get(ctx, id)
	}
	if errors.Is(err, dbx.ErrNotFound) {
		return nil, ErrBorrowingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get borrowing: %w", err)
	}
	return b, nil
}

// ListBorrowings returns borrowings newest first, restricted to userID
// when it is non-nil.
func (s *service) ListBorrowings(ctx context.Context, userID *uuid.UUID) ([]*Borrowing, error) {
	list, err := s.store.Borrowings().List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list borrowings: %w", err)
	}
	return list, nil
}
