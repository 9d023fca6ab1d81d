// internal/membership/service.go
package membership

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the membership service.
type Service interface {
	Register(ctx context.Context, reg Registration) (*User, error)
	CreateAdmin(ctx context.Context, reg Registration) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// Repository is the membership persistence.
type Repository interface {
	Create(ctx context.Context, u *User, cred *Credential) error
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, *Credential, error)
	Update(ctx context.Context, u *User, cred *Credential) error
	Delete(ctx context.Context, id uuid.UUID) error
}
