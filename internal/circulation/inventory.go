// internal/circulation/inventory.go
package circulation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"shelfkeeper/internal/catalog"
)

// ResizeInventory sets a book's total copies. The copies currently out are
// preserved, so available_copies moves by the same delta as the total.
func (s *service) ResizeInventory(ctx context.Context, bookID uuid.UUID, totalCopies int) error {
	return s.ReviseBook(ctx, bookID, nil, &totalCopies)
}

// ReviseBook applies edit to the locked book and, when totalCopies is set,
// resizes its inventory. Both land in one transaction; an error from edit
// or from the resize leaves the book untouched.
func (s *service) ReviseBook(ctx context.Context, bookID uuid.UUID, edit func(*catalog.Book) (bool, error), totalCopies *int) (err error) {
	attrs := []attribute.KeyValue{attribute.String("book.id", bookID.String())}
	if totalCopies != nil {
		attrs = append(attrs, attribute.Int("total_copies", *totalCopies))
	}
	ctx, end := s.span(ctx, "circulation.revise_book", attrs...)
	defer func() { end(err) }()

	if totalCopies != nil && *totalCopies < 0 {
		return ErrNegativeTotal
	}

	resized := false
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		book, err := lockBook(ctx, tx, bookID)
		if err != nil {
			return err
		}

		if edit != nil {
			changed, err := edit(book)
			if err != nil {
				return err
			}
			if changed {
				if err := tx.Books().UpdateDetails(ctx, book); err != nil {
					return fmt.Errorf("update book details: %w", err)
				}
			}
		}

		if totalCopies == nil || *totalCopies == book.TotalCopies {
			return nil
		}
		out := book.OutCopies()
		if *totalCopies < out {
			return ErrCopiesOut
		}

		available := *totalCopies - out
		if err := tx.Books().SetCopies(ctx, bookID, *totalCopies, available); err != nil {
			return fmt.Errorf("set copies: %w", err)
		}
		resized = true
		return record(ctx, tx, bookID, EventInventoryResized, InventoryResizedEvent{
			OldTotal:        book.TotalCopies,
			NewTotal:        *totalCopies,
			AvailableCopies: available,
		})
	})
	if err != nil {
		return err
	}

	if resized {
		s.metrics.transition(ctx, EventInventoryResized)
		s.logger.Info(ctx, "book inventory resized", "book_id", bookID, "total_copies", *totalCopies)
	}
	return nil
}
