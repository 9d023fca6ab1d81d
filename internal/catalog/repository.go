// internal/catalog/repository.go
package catalog

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"shelfkeeper/internal/dbx"
)

var dialect = goqu.Dialect("postgres")

const bookColumns = `b.id, b.title, b.author, b.category, b.isbn, b.total_copies, b.available_copies,
	b.description, b.created_at,
	EXISTS (SELECT 1 FROM reservations r WHERE r.book_id = b.id AND r.status = 'active')`

// PostgresRepository stores books. Bound to a transaction it also serves
// the circulation engine's locked counter updates.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*Book, error) {
	b := &Book{}
	var hasActive bool
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Category, &b.ISBN, &b.TotalCopies,
		&b.AvailableCopies, &b.Description, &b.CreatedAt, &hasActive); err != nil {
		return nil, err
	}
	b.Status = DeriveStatus(b.AvailableCopies, hasActive)
	return b, nil
}

func (r *PostgresRepository) Create(ctx context.Context, b *Book) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO books (id, title, author, category, isbn, total_copies, available_copies, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.Title, b.Author, b.Category, b.ISBN, b.TotalCopies, b.AvailableCopies, b.Description, b.CreatedAt)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Book, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books b WHERE b.id = $1`, id)
	b, err := scanBook(row)
	if err != nil {
		return nil, dbx.NotFoundIfNoRows(err)
	}
	return b, nil
}

// GetForUpdate reads the book and locks its row until the transaction ends.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Book, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books b WHERE b.id = $1 FOR UPDATE OF b`, id)
	b, err := scanBook(row)
	if err != nil {
		return nil, dbx.NotFoundIfNoRows(err)
	}
	return b, nil
}

// List returns books ordered by title, then id.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*Book, error) {
	ds := dialect.From(goqu.T("books").As("b")).
		Select(goqu.L(bookColumns)).
		Order(goqu.I("b.title").Asc(), goqu.I("b.id").Asc()).
		Prepared(true)

	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		ds = ds.Where(goqu.Or(
			goqu.I("b.title").ILike(pattern),
			goqu.I("b.author").ILike(pattern),
		))
	}
	if f.Category != "" {
		ds = ds.Where(goqu.I("b.category").Eq(f.Category))
	}
	if f.Author != "" {
		ds = ds.Where(goqu.I("b.author").ILike("%" + f.Author + "%"))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []*Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// UpdateDetails writes the descriptive fields. Copy counters are left to
// AdjustAvailable and SetCopies.
func (r *PostgresRepository) UpdateDetails(ctx context.Context, b *Book) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE books SET title = $2, author = $3, category = $4, isbn = $5, description = $6
		WHERE id = $1`,
		b.ID, b.Title, b.Author, b.Category, b.ISBN, b.Description)
	if err != nil {
		return err
	}
	return expectOne(res.RowsAffected())
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res.RowsAffected())
}

// AdjustAvailable adds delta to available_copies and returns the new value.
// The books CHECK constraint rejects a counter outside [0, total_copies].
func (r *PostgresRepository) AdjustAvailable(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	var available int
	err := r.db.QueryRowContext(ctx, `
		UPDATE books SET available_copies = available_copies + $2
		WHERE id = $1
		RETURNING available_copies`, id, delta).Scan(&available)
	if err != nil {
		return 0, dbx.NotFoundIfNoRows(err)
	}
	return available, nil
}

// SetCopies overwrites both counters.
func (r *PostgresRepository) SetCopies(ctx context.Context, id uuid.UUID, total, available int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE books SET total_copies = $2, available_copies = $3
		WHERE id = $1`, id, total, available)
	if err != nil {
		return err
	}
	return expectOne(res.RowsAffected())
}

func expectOne(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return dbx.ErrNotFound
	}
	return nil
}
