package notification

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfkeeper/internal/dbx"
)

var notificationColumns = []string{"id", "user_id", "message", "type", "is_read", "dedupe_key", "created_at"}

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreateOnce(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"inserted", 1, true},
		{"duplicate unread reminder", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			n := New(uuid.New(), TypeDueDate, "Reminder", time.Now()).WithDedupeKey(DueReminderKey(uuid.New()))

			mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (dedupe_key) WHERE is_read = false DO NOTHING")).
				WithArgs(n.ID, n.UserID, n.Message, string(n.Type), false, *n.DedupeKey, n.CreatedAt).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := repo.CreateOnce(context.Background(), n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListByUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(notificationColumns).
			AddRow(uuid.NewString(), userID.String(), "second", "overdue", false, nil, now).
			AddRow(uuid.NewString(), userID.String(), "first", "reservation", true, nil, now.Add(-time.Hour)))

	list, err := repo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, TypeOverdue, list[0].Type)
	assert.True(t, list[1].IsRead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRead_NotOwner(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE notifications SET is_read = true")).
		WillReturnRows(sqlmock.NewRows(notificationColumns))

	_, err := repo.MarkRead(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, dbx.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
