// internal/notification/domain.go
package notification

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies a notification.
type Type string

const (
	TypeDueDate     Type = "due_date"
	TypeOverdue     Type = "overdue"
	TypeReservation Type = "reservation"
)

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`

	// DedupeKey, when set, allows at most one unread notification per key.
	DedupeKey *string `json:"-"`
}

// New returns an unread notification stamped at now.
func New(userID uuid.UUID, typ Type, message string, now time.Time) *Notification {
	return &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Message:   message,
		Type:      typ,
		CreatedAt: now,
	}
}

// WithDedupeKey sets the dedupe key and returns n.
func (n *Notification) WithDedupeKey(key string) *Notification {
	n.DedupeKey = &key
	return n
}

// DueReminderKey is the dedupe key for due-soon reminders of a borrowing.
func DueReminderKey(borrowingID uuid.UUID) string {
	return "due-reminder:" + borrowingID.String()
}
