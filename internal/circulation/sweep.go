// internal/circulation/sweep.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shelfkeeper/internal/notification"
)

// SweepOverdue flags every open borrowing past its due date and notifies
// its borrower once. Each borrowing is handled in its own transaction
// under its book's lock; a concurrent sweep that loses the race on the
// flag emits nothing. It returns the number of borrowings newly flagged.
func (s *service) SweepOverdue(ctx context.Context) (n int, err error) {
	ctx, end := s.span(ctx, "circulation.sweep_overdue")
	defer func() { end(err) }()

	now := s.clock()
	candidates, err := s.store.Borrowings().ListOverdueCandidates(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue candidates: %w", err)
	}

	for _, c := range candidates {
		flagged := false
		err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			if _, err := lockBook(ctx, tx, c.BookID); err != nil {
				return err
			}
			ok, err := tx.Borrowings().FlagOverdue(ctx, c.ID)
			if err != nil {
				return fmt.Errorf("flag overdue: %w", err)
			}
			if !ok {
				return nil
			}
			flagged = true

			if err := notify(ctx, tx, notification.New(c.UserID, notification.TypeOverdue,
				fmt.Sprintf(`"%s" is overdue. Please return it as soon as possible.`, c.BookTitle), now)); err != nil {
				return err
			}
			return record(ctx, tx, c.BookID, EventBorrowingOverdue, BorrowingEvent{
				BorrowingID: c.ID,
				UserID:      c.UserID,
				DueDate:     c.DueDate,
			})
		})
		if errors.Is(err, ErrBookNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		if flagged {
			n++
			s.metrics.transition(ctx, EventBorrowingOverdue)
		}
	}

	if n > 0 {
		s.logger.Info(ctx, "borrowings flagged overdue", "count", n)
	}
	return n, nil
}

// SweepDueSoon reminds borrowers whose open borrowing falls due within
// DueSoonWindow. At most one unread reminder exists per borrowing.
func (s *service) SweepDueSoon(ctx context.Context) (res *DueSoonResult, err error) {
	ctx, end := s.span(ctx, "circulation.sweep_due_soon")
	defer func() { end(err) }()

	now := s.clock()
	res = &DueSoonResult{}

	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		upcoming, err := tx.Borrowings().ListDueBetween(ctx, now, now.Add(DueSoonWindow))
		if err != nil {
			return fmt.Errorf("list due soon: %w", err)
		}
		res.UpcomingDue = len(upcoming)

		for _, b := range upcoming {
			n := notification.New(b.UserID, notification.TypeDueDate,
				fmt.Sprintf(`Reminder: "%s" is due in %d day(s).`, b.BookTitle, daysUntil(now, b.DueDate)), now).
				WithDedupeKey(notification.DueReminderKey(b.ID))

			created, err := tx.Notifications().CreateOnce(ctx, n)
			if err != nil {
				return fmt.Errorf("create reminder: %w", err)
			}
			if created {
				res.NotificationsCreated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.reminders(ctx, res.NotificationsCreated)
	s.logger.Info(ctx, "due-soon sweep finished",
		"upcoming", res.UpcomingDue, "notifications_created", res.NotificationsCreated)
	return res, nil
}

// daysUntil is the number of whole days from now to due, rounded down.
func daysUntil(now, due time.Time) int {
	return int(due.Sub(now) / (24 * time.Hour))
}

// DaysOverdue is the number of whole days due lies before now, rounded
// down.
func DaysOverdue(now, due time.Time) int {
	return int(now.Sub(due) / (24 * time.Hour))
}
