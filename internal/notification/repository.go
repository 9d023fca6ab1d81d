// internal/notification/repository.go
package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"shelfkeeper/internal/dbx"
)

// PostgresRepository reads and writes the notifications table. It works on
// either a pool or a transaction.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const insertNotification = `
	INSERT INTO notifications (id, user_id, message, type, is_read, dedupe_key, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Create inserts n.
func (r *PostgresRepository) Create(ctx context.Context, n *Notification) error {
	_, err := r.db.ExecContext(ctx, insertNotification,
		n.ID, n.UserID, n.Message, n.Type, n.IsRead, n.DedupeKey, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// CreateOnce inserts n unless an unread notification with the same dedupe
// key exists. It reports whether a row was written.
func (r *PostgresRepository) CreateOnce(ctx context.Context, n *Notification) (bool, error) {
	res, err := r.db.ExecContext(ctx, insertNotification+`
	ON CONFLICT (dedupe_key) WHERE is_read = false DO NOTHING`,
		n.ID, n.UserID, n.Message, n.Type, n.IsRead, n.DedupeKey, n.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListByUser returns the user's notifications, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, message, type, is_read, dedupe_key, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	list := []*Notification{}
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Type, &n.IsRead, &n.DedupeKey, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return list, nil
}

// MarkRead flags the notification as read if it belongs to userID. It
// returns dbx.ErrNotFound otherwise.
func (r *PostgresRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) (*Notification, error) {
	n := &Notification{}
	err := r.db.QueryRowContext(ctx, `
		UPDATE notifications SET is_read = true
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, message, type, is_read, dedupe_key, created_at`, id, userID).
		Scan(&n.ID, &n.UserID, &n.Message, &n.Type, &n.IsRead, &n.DedupeKey, &n.CreatedAt)
	if err != nil {
		return nil, dbx.NotFoundIfNoRows(err)
	}
	return n, nil
}
