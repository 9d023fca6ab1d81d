// internal/reporting/repository.go
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"shelfkeeper/internal/auth"
	"shelfkeeper/internal/circulation"
	"shelfkeeper/internal/dbx"
	"shelfkeeper/internal/membership"
)

var dialect = goqu.Dialect("postgres")

// PostgresRepository builds report queries with goqu and scans them with
// sqlx.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type borrowingRow struct {
	ID         uuid.UUID  `db:"id"`
	UserID     uuid.UUID  `db:"user_id"`
	BookID     uuid.UUID  `db:"book_id"`
	BookTitle  string     `db:"book_title"`
	BorrowedAt time.Time  `db:"borrowed_at"`
	DueDate    time.Time  `db:"due_date"`
	ReturnedAt *time.Time `db:"returned_at"`
	IsOverdue  bool       `db:"is_overdue"`
}

func (r borrowingRow) borrowing() *circulation.Borrowing {
	return &circulation.Borrowing{
		ID:         r.ID,
		UserID:     r.UserID,
		BookID:     r.BookID,
		BookTitle:  r.BookTitle,
		BorrowedAt: r.BorrowedAt,
		DueDate:    r.DueDate,
		ReturnedAt: r.ReturnedAt,
		IsOverdue:  r.IsOverdue,
	}
}

type overdueRow struct {
	borrowingRow
	UserName      string    `db:"user_name"`
	UserEmail     string    `db:"user_email"`
	UserRole      auth.Role `db:"user_role"`
	UserCreatedAt time.Time `db:"user_created_at"`
}

type userRow struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Role      auth.Role `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

func borrowingsQuery() *goqu.SelectDataset {
	return dialect.From(goqu.T("borrowings").As("o")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("o.book_id")))).
		Select(
			goqu.I("o.id"),
			goqu.I("o.user_id"),
			goqu.I("o.book_id"),
			goqu.I("b.title").As("book_title"),
			goqu.I("o.borrowed_at"),
			goqu.I("o.due_date"),
			goqu.I("o.returned_at"),
			goqu.I("o.is_overdue"),
		).
		Prepared(true)
}

// PopularBooks ranks borrowed books by borrowing count, ties by id.
func (p *PostgresRepository) PopularBooks(ctx context.Context, limit int) ([]PopularBook, error) {
	query, args, err := dialect.From(goqu.T("books").As("b")).
		Join(goqu.T("borrowings").As("o"), goqu.On(goqu.I("o.book_id").Eq(goqu.I("b.id")))).
		Select(
			goqu.I("b.id"),
			goqu.I("b.title"),
			goqu.I("b.author"),
			goqu.COUNT(goqu.I("o.id")).As("borrow_count"),
		).
		GroupBy(goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.author")).
		Order(goqu.C("borrow_count").Desc(), goqu.I("b.id").Asc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build popular books query: %w", err)
	}

	books := []PopularBook{}
	if err := p.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, err
	}
	return books, nil
}

// OpenOverdue returns open borrowings due before now with their borrowers,
// most overdue first.
func (p *PostgresRepository) OpenOverdue(ctx context.Context, now time.Time) ([]OverdueEntry, error) {
	query, args, err := borrowingsQuery().
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("o.user_id")))).
		SelectAppend(
			goqu.I("u.name").As("user_name"),
			goqu.I("u.email").As("user_email"),
			goqu.I("u.role").As("user_role"),
			goqu.I("u.created_at").As("user_created_at"),
		).
		Where(
			goqu.I("o.returned_at").IsNull(),
			goqu.I("o.due_date").Lt(now),
		).
		Order(goqu.I("o.due_date").Asc(), goqu.I("o.id").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build overdue query: %w", err)
	}

	var rows []overdueRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	entries := make([]OverdueEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, OverdueEntry{
			Borrowing: r.borrowing(),
			User: &membership.User{
				ID:        r.UserID,
				Name:      r.UserName,
				Email:     r.UserEmail,
				Role:      r.UserRole,
				CreatedAt: r.UserCreatedAt,
			},
		})
	}
	return entries, nil
}

func (p *PostgresRepository) GetUser(ctx context.Context, id uuid.UUID) (*membership.User, error) {
	query, args, err := dialect.From("users").
		Select("id", "name", "email", "role", "created_at").
		Where(goqu.C("id").Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build user query: %w", err)
	}

	var row userRow
	if err := p.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, dbx.NotFoundIfNoRows(err)
	}
	return &membership.User{ID: row.ID, Name: row.Name, Email: row.Email, Role: row.Role, CreatedAt: row.CreatedAt}, nil
}

func (p *PostgresRepository) BorrowingsByUser(ctx context.Context, userID uuid.UUID) ([]*circulation.Borrowing, error) {
	query, args, err := borrowingsQuery().
		Where(goqu.I("o.user_id").Eq(userID)).
		Order(goqu.I("o.borrowed_at").Desc(), goqu.I("o.id").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	var rows []borrowingRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	list := make([]*circulation.Borrowing, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.borrowing())
	}
	return list, nil
}

func (p *PostgresRepository) AllReservations(ctx context.Context) ([]ReservationView, error) {
	query, args, err := dialect.From(goqu.T("reservations").As("r")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("r.user_id")))).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("r.book_id")))).
		Select(
			goqu.I("r.id").As("reservation_id"),
			goqu.I("u.id").As("user_id"),
			goqu.I("u.name").As("user_name"),
			goqu.I("u.email").As("user_email"),
			goqu.I("r.status").As("reservation_status"),
			goqu.I("r.reserved_at"),
			goqu.I("r.expires_at"),
			goqu.I("b.id").As("book_id"),
			goqu.I("b.title").As("book_title"),
		).
		Order(
			goqu.L("CASE WHEN ? THEN 0 ELSE 1 END", goqu.I("r.status").Eq(string(circulation.ReservationActive))).Asc(),
			goqu.I("r.reserved_at").Desc(),
			goqu.I("r.id").Asc(),
		).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build reservations query: %w", err)
	}

	list := []ReservationView{}
	if err := p.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, err
	}
	return list, nil
}

func (p *PostgresRepository) BookExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := p.db.GetContext(ctx, &ok, `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, id)
	return ok, err
}
