package reporting

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfkeeper/internal/auth"
	"shelfkeeper/internal/circulation"
	"shelfkeeper/internal/dbx"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresRepository_PopularBooks(t *testing.T) {
	repo, mock := newMockRepo(t)
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT "b"."id", "b"."title", "b"."author", COUNT\("o"."id"\) AS "borrow_count" FROM "books" AS "b" INNER JOIN "borrowings" AS "o" .* GROUP BY .* ORDER BY "borrow_count" DESC, "b"."id" ASC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author", "borrow_count"}).
			AddRow(a.String(), "Dune", "Herbert", 3).
			AddRow(b.String(), "Emma", "Austen", 1))

	books, err := repo.PopularBooks(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, PopularBook{ID: a, Title: "Dune", Author: "Herbert", BorrowCount: 3}, books[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_OpenOverdue(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	id, userID, bookID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(`INNER JOIN "users" AS "u" .* WHERE .*"o"."returned_at" IS NULL.*"o"."due_date" < \$1.* ORDER BY "o"."due_date" ASC`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "book_id", "book_title", "borrowed_at", "due_date", "returned_at", "is_overdue",
			"user_name", "user_email", "user_role", "user_created_at",
		}).AddRow(id.String(), userID.String(), bookID.String(), "Dune", now.Add(-20*24*time.Hour), now.Add(-6*24*time.Hour), nil, true,
			"John Doe", "user@library.com", "member", now.Add(-100*24*time.Hour)))

	entries, err := repo.OpenOverdue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].Borrowing.ID)
	assert.Equal(t, "Dune", entries[0].Borrowing.BookTitle)
	assert.True(t, entries[0].Borrowing.IsOverdue)
	assert.Equal(t, userID, entries[0].User.ID)
	assert.Equal(t, auth.RoleMember, entries[0].User.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetUserMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT "id", "name", "email", "role", "created_at" FROM "users" WHERE \("id" = \$1\)`).
		WithArgs(id.String()).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUser(context.Background(), id)
	assert.ErrorIs(t, err, dbx.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_AllReservationsActiveFirst(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`ORDER BY CASE WHEN \("r"."status" = \$1\) THEN 0 ELSE 1 END ASC, "r"."reserved_at" DESC`).
		WithArgs(string(circulation.ReservationActive)).
		WillReturnRows(sqlmock.NewRows([]string{
			"reservation_id", "user_id", "user_name", "user_email", "reservation_status",
			"reserved_at", "expires_at", "book_id", "book_title",
		}))

	list, err := repo.AllReservations(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}
