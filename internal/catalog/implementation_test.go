package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfkeeper/internal/dbx"
	"shelfkeeper/internal/logging"
)

type memRepo struct {
	books map[uuid.UUID]*Book
}

func newMemRepo() *memRepo { return &memRepo{books: map[uuid.UUID]*Book{}} }

func (m *memRepo) Create(_ context.Context, b *Book) error {
	for _, other := range m.books {
		if b.ISBN != nil && other.ISBN != nil && *b.ISBN == *other.ISBN {
			return &pq.Error{Code: "23505"}
		}
	}
	cp := *b
	m.books[b.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, id uuid.UUID) (*Book, error) {
	b, ok := m.books[id]
	if !ok {
		return nil, dbx.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memRepo) List(context.Context, Filter) ([]*Book, error) {
	out := []*Book{}
	for _, b := range m.books {
		out = append(out, b)
	}
	return out, nil
}

func (m *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.books[id]; !ok {
		return dbx.ErrNotFound
	}
	delete(m.books, id)
	return nil
}

// reviser edits a copy of the stored book and writes it back only when
// the edit and the resize both succeed, as the circulation engine's
// transaction does.
type reviser struct {
	repo    *memRepo
	resizes int
}

func (r *reviser) ReviseBook(_ context.Context, id uuid.UUID, edit func(*Book) (bool, error), total *int) error {
	cur, ok := r.repo.books[id]
	if !ok {
		return ErrBookNotFound
	}
	next := *cur
	if _, err := edit(&next); err != nil {
		return err
	}
	if next.ISBN != nil {
		for otherID, other := range r.repo.books {
			if otherID != id && other.ISBN != nil && *other.ISBN == *next.ISBN {
				return &pq.Error{Code: "23505"}
			}
		}
	}
	if total != nil && *total != next.TotalCopies {
		if *total < next.OutCopies() {
			return ErrCopiesOut
		}
		next.AvailableCopies += *total - next.TotalCopies
		next.TotalCopies = *total
		r.resizes++
	}
	*cur = next
	return nil
}

func newTestService() (Service, *memRepo, *reviser) {
	repo := newMemRepo()
	inv := &reviser{repo: repo}
	return NewService(repo, inv, logging.Discard()), repo, inv
}

func ptr[T any](v T) *T { return &v }

func TestAddBook(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	book, err := svc.AddBook(ctx, NewBook{Title: " Dune ", Author: "Frank Herbert", TotalCopies: 3, ISBN: ptr("9780441013593")})
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, DefaultCategory, book.Category)
	assert.Equal(t, 3, book.AvailableCopies)
	assert.Equal(t, StatusAvailable, book.Status)

	_, err = svc.AddBook(ctx, NewBook{Title: "Dune Messiah", Author: "Frank Herbert", ISBN: ptr("9780441013593")})
	assert.ErrorIs(t, err, ErrDuplicateISBN)

	_, err = svc.AddBook(ctx, NewBook{Title: "", Author: "x"})
	assert.ErrorIs(t, err, ErrTitleRequired)

	_, err = svc.AddBook(ctx, NewBook{Title: "x", Author: "y", TotalCopies: -1})
	assert.ErrorIs(t, err, ErrNegativeTotal)
}

func TestUpdateBook(t *testing.T) {
	ctx := context.Background()

	t.Run("metadata only", func(t *testing.T) {
		svc, _, inv := newTestService()
		book, err := svc.AddBook(ctx, NewBook{Title: "Emma", Author: "Austen", TotalCopies: 2})
		require.NoError(t, err)

		got, err := svc.UpdateBook(ctx, book.ID, BookUpdate{Category: ptr("Romance"), Title: ptr("  ")})
		require.NoError(t, err)
		assert.Equal(t, "Romance", got.Category)
		assert.Equal(t, "Emma", got.Title, "blank values are ignored")
		assert.Zero(t, inv.resizes)
	})

	t.Run("resize goes through inventory", func(t *testing.T) {
		svc, repo, inv := newTestService()
		book, err := svc.AddBook(ctx, NewBook{Title: "Emma", Author: "Austen", TotalCopies: 2})
		require.NoError(t, err)
		repo.books[book.ID].AvailableCopies = 1

		got, err := svc.UpdateBook(ctx, book.ID, BookUpdate{TotalCopies: ptr(4)})
		require.NoError(t, err)
		assert.Equal(t, 1, inv.resizes)
		assert.Equal(t, 4, got.TotalCopies)
		assert.Equal(t, 3, got.AvailableCopies)
	})

	t.Run("cannot shrink below copies out", func(t *testing.T) {
		svc, repo, inv := newTestService()
		book, err := svc.AddBook(ctx, NewBook{Title: "Emma", Author: "Austen", TotalCopies: 3})
		require.NoError(t, err)
		repo.books[book.ID].AvailableCopies = 0

		_, err = svc.UpdateBook(ctx, book.ID, BookUpdate{TotalCopies: ptr(2), Title: ptr("Changed")})
		assert.ErrorIs(t, err, ErrCopiesOut)
		assert.Zero(t, inv.resizes)
		assert.Equal(t, "Emma", repo.books[book.ID].Title, "details roll back with the resize")
	})

	t.Run("negative total", func(t *testing.T) {
		svc, repo, _ := newTestService()
		book, err := svc.AddBook(ctx, NewBook{Title: "Emma", Author: "Austen", TotalCopies: 1})
		require.NoError(t, err)

		_, err = svc.UpdateBook(ctx, book.ID, BookUpdate{TotalCopies: ptr(-1), Title: ptr("Changed")})
		assert.ErrorIs(t, err, ErrNegativeTotal)
		assert.Equal(t, "Emma", repo.books[book.ID].Title)
	})

	t.Run("duplicate isbn", func(t *testing.T) {
		svc, _, _ := newTestService()
		_, err := svc.AddBook(ctx, NewBook{Title: "Emma", Author: "Austen", ISBN: ptr("111")})
		require.NoError(t, err)
		other, err := svc.AddBook(ctx, NewBook{Title: "Persuasion", Author: "Austen", ISBN: ptr("222")})
		require.NoError(t, err)

		_, err = svc.UpdateBook(ctx, other.ID, BookUpdate{ISBN: ptr("111")})
		assert.ErrorIs(t, err, ErrDuplicateISBN)
	})

	t.Run("unknown book", func(t *testing.T) {
		svc, _, _ := newTestService()
		_, err := svc.UpdateBook(ctx, uuid.New(), BookUpdate{Title: ptr("x")})
		assert.ErrorIs(t, err, ErrBookNotFound)
	})
}

func TestDeleteBook(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	book, err := svc.AddBook(ctx, NewBook{Title: "Emma", Author: "Austen", TotalCopies: 1})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBook(ctx, book.ID))
	assert.ErrorIs(t, svc.DeleteBook(ctx, book.ID), ErrBookNotFound)
	_, err = svc.GetBook(ctx, book.ID)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, StatusAvailable, DeriveStatus(1, true))
	assert.Equal(t, StatusReserved, DeriveStatus(0, true))
	assert.Equal(t, StatusBorrowed, DeriveStatus(0, false))
}
