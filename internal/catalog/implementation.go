// internal/catalog/implementation.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"shelfkeeper/internal/apperr"
	"shelfkeeper/internal/dbx"
	"shelfkeeper/internal/logging"
)

var (
	ErrBookNotFound  = apperr.NotFound("book not found")
	ErrDuplicateISBN = apperr.Conflict("a book with this ISBN already exists")
	ErrTitleRequired = apperr.Validation("title and author are required")
	ErrNegativeTotal = apperr.Validation("total_copies must not be negative")
	ErrCopiesOut     = apperr.InvalidState("total_copies is below the number of copies currently out")
)

// service implements the Service interface.
type service struct {
	repo      Repository
	inventory Inventory
	logger    logging.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService creates a new catalog service instance. Changes to
// total_copies are delegated to inventory.
func NewService(repo Repository, inventory Inventory, logger logging.Logger) Service {
	return &service{
		repo:      repo,
		inventory: inventory,
		logger:    logger,
		tracer:    otel.Tracer("shelfkeeper/catalog"),
		now:       time.Now,
	}
}

// AddBook creates a book with every copy available.
func (s *service) AddBook(ctx context.Context, in NewBook) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.add_book")
	defer span.End()

	title, author := strings.TrimSpace(in.Title), strings.TrimSpace(in.Author)
	if title == "" || author == "" {
		return nil, ErrTitleRequired
	}
	if in.TotalCopies < 0 {
		return nil, ErrNegativeTotal
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = DefaultCategory
	}

	book := &Book{
		ID:              uuid.New(),
		Title:           title,
		Author:          author,
		Category:        category,
		ISBN:            normalizeISBN(in.ISBN),
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
		Description:     in.Description,
		CreatedAt:       s.now().UTC(),
	}
	book.Status = DeriveStatus(book.AvailableCopies, false)

	if err := s.repo.Create(ctx, book); err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, ErrDuplicateISBN
		}
		return nil, fmt.Errorf("create book: %w", err)
	}

	span.SetAttributes(attribute.String("book.id", book.ID.String()))
	s.logger.Info(ctx, "book added", "book_id", book.ID, "total_copies", book.TotalCopies)
	return book, nil
}

// GetBook retrieves a book with its derived status.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	book, err := s.repo.Get(ctx, id)
	if errors.Is(err, dbx.ErrNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// ListBooks returns the books matching f.
func (s *service) ListBooks(ctx context.Context, f Filter) ([]*Book, error) {
	f.Search = strings.TrimSpace(f.Search)
	f.Category = strings.TrimSpace(f.Category)
	f.Author = strings.TrimSpace(f.Author)

	books, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// UpdateBook applies metadata changes and any total_copies resize through
// the circulation engine in one transaction.
func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, upd BookUpdate) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.update_book",
		trace.WithAttributes(attribute.String("book.id", id.String())))
	defer span.End()

	if upd.TotalCopies != nil && *upd.TotalCopies < 0 {
		return nil, ErrNegativeTotal
	}

	err := s.inventory.ReviseBook(ctx, id, func(b *Book) (bool, error) {
		changed := applyUpdate(b, upd)
		if b.Title == "" || b.Author == "" {
			return false, ErrTitleRequired
		}
		return changed, nil
	}, upd.TotalCopies)
	switch {
	case dbx.IsUniqueViolation(err):
		return nil, ErrDuplicateISBN
	case err != nil:
		return nil, err
	}

	s.logger.Info(ctx, "book updated", "book_id", id)
	return s.GetBook(ctx, id)
}

// DeleteBook removes a book. Its reservations and borrowings go with it.
func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, dbx.ErrNotFound) {
		return ErrBookNotFound
	}
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	s.logger.Info(ctx, "book deleted", "book_id", id)
	return nil
}

func applyUpdate(b *Book, upd BookUpdate) bool {
	changed := false
	set := func(dst *string, src *string) {
		if src == nil {
			return
		}
		if v := strings.TrimSpace(*src); v != "" && v != *dst {
			*dst = v
			changed = true
		}
	}
	set(&b.Title, upd.Title)
	set(&b.Author, upd.Author)
	set(&b.Category, upd.Category)

	if isbn := normalizeISBN(upd.ISBN); isbn != nil {
		b.ISBN = isbn
		changed = true
	}
	if upd.Description != nil && strings.TrimSpace(*upd.Description) != "" {
		b.Description = upd.Description
		changed = true
	}
	return changed
}

func normalizeISBN(isbn *string) *string {
	if isbn == nil {
		return nil
	}
	v := strings.TrimSpace(*isbn)
	if v == "" {
		return nil
	}
	return &v
}
