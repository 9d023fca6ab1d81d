// internal/circulation/postgres_repository.go
package circulation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shelfkeeper/internal/dbx"
)

const reservationColumns = `r.id, r.user_id, r.book_id, b.title, r.status, r.reserved_at, r.expires_at`

// PostgresReservations implements ReservationRepository.
type PostgresReservations struct {
	db dbx.DBTX
}

func NewPostgresReservations(db dbx.DBTX) *PostgresReservations {
	return &PostgresReservations{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*Reservation, error) {
	r := &Reservation{}
	if err := row.Scan(&r.ID, &r.UserID, &r.BookID, &r.BookTitle, &r.Status, &r.ReservedAt, &r.ExpiresAt); err != nil {
		return nil, err
	}
	return r, nil
}

func collectReservations(rows *sql.Rows, err error) ([]*Reservation, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

func (p *PostgresReservations) Create(ctx context.Context, r *Reservation) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO reservations (id, user_id, book_id, status, reserved_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.UserID, r.BookID, r.Status, r.ReservedAt, r.ExpiresAt)
	return err
}

func (p *PostgresReservations) Get(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	r, err := scanReservation(p.db.QueryRowContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations r JOIN books b ON b.id = r.book_id
		WHERE r.id = $1`, id))
	return r, dbx.NotFoundIfNoRows(err)
}

func (p *PostgresReservations) GetForUpdate(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	r, err := scanReservation(p.db.QueryRowContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations r JOIN books b ON b.id = r.book_id
		WHERE r.id = $1
		FOR UPDATE OF r`, id))
	return r, dbx.NotFoundIfNoRows(err)
}

func (p *PostgresReservations) FindActiveForUpdate(ctx context.Context, userID, bookID uuid.UUID) (*Reservation, error) {
	r, err := scanReservation(p.db.QueryRowContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations r JOIN books b ON b.id = r.book_id
		WHERE r.user_id = $1 AND r.book_id = $2 AND r.status = 'active'
		FOR UPDATE OF r`, userID, bookID))
	return r, dbx.NotFoundIfNoRows(err)
}

func (p *PostgresReservations) UpdateStatus(ctx context.Context, id uuid.UUID, status ReservationStatus) error {
	res, err := p.db.ExecContext(ctx, `UPDATE reservations SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return dbx.ErrNotFound
	}
	return nil
}

// ListExpired returns active reservations whose hold ended before now.
func (p *PostgresReservations) ListExpired(ctx context.Context, now time.Time) ([]*Reservation, error) {
	return collectReservations(p.db.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations r JOIN books b ON b.id = r.book_id
		WHERE r.status = 'active' AND r.expires_at < $1
		ORDER BY r.expires_at`, now))
}

func (p *PostgresReservations) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Reservation, error) {
	return collectReservations(p.db.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations r JOIN books b ON b.id = r.book_id
		WHERE r.user_id = $1
		ORDER BY r.reserved_at DESC, r.id`, userID))
}

const borrowingColumns = `o.id, o.user_id, o.book_id, b.title, o.borrowed_at, o.due_date, o.returned_at, o.is_overdue`

// PostgresBorrowings implements BorrowingRepository.
type PostgresBorrowings struct {
	db dbx.DBTX
}

func NewPostgresBorrowings(db dbx.DBTX) *PostgresBorrowings {
	return &PostgresBorrowings{db: db}
}

func scanBorrowing(row rowScanner) (*Borrowing, error) {
	o := &Borrowing{}
	if err := row.Scan(&o.ID, &o.UserID, &o.BookID, &o.BookTitle, &o.BorrowedAt, &o.DueDate, &o.ReturnedAt, &o.IsOverdue); err != nil {
		return nil, err
	}
	return o, nil
}

func collectBorrowings(rows *sql.Rows, err error) ([]*Borrowing, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*Borrowing{}
	for rows.Next() {
		o, err := scanBorrowing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan borrowing: %w", err)
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

func (p *PostgresBorrowings) Create(ctx context.Context, o *Borrowing) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO borrowings (id, user_id, book_id, borrowed_at, due_date, returned_at, is_overdue)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.UserID, o.BookID, o.BorrowedAt, o.DueDate, o.ReturnedAt, o.IsOverdue)
	return err
}

func (p *PostgresBorrowings) Get(ctx context.Context, id uuid.UUID) (*Borrowing, error) {
	o, err := scanBorrowing(p.db.QueryRowContext(ctx, `
		SELECT `+borrowingColumns+`
		FROM borrowings o JOIN books b ON b.id = o.book_id
		WHERE o.id = $1`, id))
	return o, dbx.NotFoundIfNoRows(err)
}

func (p *PostgresBorrowings) GetForUpdate(ctx context.Context, id uuid.UUID) (*Borrowing, error) {
	o, err := scanBorrowing(p.db.QueryRowContext(ctx, `
		SELECT `+borrowingColumns+`
		FROM borrowings o JOIN books b ON b.id = o.book_id
		WHERE o.id = $1
		FOR UPDATE OF o`, id))
	return o, dbx.NotFoundIfNoRows(err)
}

func (p *PostgresBorrowings) MarkReturned(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE borrowings SET returned_at = $2
		WHERE id = $1 AND returned_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return dbx.ErrNotFound
	}
	return nil
}

func (p *PostgresBorrowings) ListOverdueCandidates(ctx context.Context, now time.Time) ([]*Borrowing, error) {
	return collectBorrowings(p.db.QueryContext(ctx, `
		SELECT `+borrowingColumns+`
		FROM borrowings o JOIN books b ON b.id = o.book_id
		WHERE o.returned_at IS NULL AND o.is_overdue = false AND o.due_date < $1
		ORDER BY o.due_date, o.id`, now))
}

func (p *PostgresBorrowings) FlagOverdue(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE borrowings SET is_overdue = true
		WHERE id = $1 AND is_overdue = false AND returned_at IS NULL`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListDueBetween returns open borrowings with after < due_date <= until.
func (p *PostgresBorrowings) ListDueBetween(ctx context.Context, after, until time.Time) ([]*Borrowing, error) {
	return collectBorrowings(p.db.QueryContext(ctx, `
		SELECT `+borrowingColumns+`
		FROM borrowings o JOIN books b ON b.id = o.book_id
		WHERE o.returned_at IS NULL AND o.due_date > $1 AND o.due_date <= $2
		ORDER BY o.due_date, o.id`, after, until))
}

func (p *PostgresBorrowings) List(ctx context.Context, userID *uuid.UUID) ([]*Borrowing, error) {
	if userID == nil {
		return collectBorrowings(p.db.QueryContext(ctx, `
			SELECT `+borrowingColumns+`
			FROM borrowings o JOIN books b ON b.id = o.book_id
			ORDER BY o.borrowed_at DESC, o.id`))
	}
	return collectBorrowings(p.db.QueryContext(ctx, `
		SELECT `+borrowingColumns+`
		FROM borrowings o JOIN books b ON b.id = o.book_id
		WHERE o.user_id = $1
		ORDER BY o.borrowed_at DESC, o.id`, *userID))
}
