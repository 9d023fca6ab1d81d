// internal/notification/service.go
package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"shelfkeeper/internal/apperr"
	"shelfkeeper/internal/dbx"
)

var ErrNotFound = apperr.NotFound("notification not found")

// Repository is the storage used by the notification service.
type Repository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) (*Notification, error)
}

// Service exposes a user's notifications. Notifications are created by the
// circulation engine, never through this service.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]*Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) (*Notification, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]*Notification, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

// MarkRead returns ErrNotFound both for unknown ids and for notifications
// owned by someone else.
func (s *service) MarkRead(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	n, err := s.repo.MarkRead(ctx, id, userID)
	if errors.Is(err, dbx.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}
