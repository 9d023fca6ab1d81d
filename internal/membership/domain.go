// internal/membership/domain.go
package membership

import (
	"time"

	"github.com/google/uuid"

	"shelfkeeper/internal/auth"
)

// User is a library account.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Credential holds a user's password hash. It is never serialised.
type Credential struct {
	UserID       uuid.UUID `json:"-"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
}

// Registration carries the fields needed to create an account.
type Registration struct {
	Name     string
	Email    string
	Password string
}

// ProfileUpdate carries optional profile changes; empty fields are left
// untouched.
type ProfileUpdate struct {
	Name     string
	Email    string
	Password string
}
