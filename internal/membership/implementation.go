// internal/membership/implementation.go
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"shelfkeeper/internal/apperr"
	"shelfkeeper/internal/auth"
	"shelfkeeper/internal/dbx"
	"shelfkeeper/internal/logging"
)

var (
	ErrUserNotFound       = apperr.NotFound("user not found")
	ErrEmailTaken         = apperr.Conflict("email already registered")
	ErrInvalidCredentials = apperr.Unauthorized("invalid credentials")
	ErrMissingFields      = apperr.Validation("name, email and password are required")
	ErrInvalidEmail       = apperr.Validation("invalid email address")
	ErrRateLimited        = apperr.RateLimited("too many attempts, try again later")
)

// service implements the Service interface.
type service struct {
	repo        Repository
	logger      logging.Logger
	rateLimiter *rate.Limiter
	now         func() time.Time
}

// Option configures the membership service.
type Option func(*service)

// WithRateLimit bounds register and login attempts to perMinute with the
// given burst. Zero disables limiting.
func WithRateLimit(perMinute, burst int) Option {
	return func(s *service) {
		if perMinute <= 0 {
			s.rateLimiter = nil
			return
		}
		s.rateLimiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	}
}

// NewService creates a new membership service instance.
func NewService(repo Repository, logger logging.Logger, opts ...Option) Service {
	s := &service{
		repo:        repo,
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Every(2*time.Second), 10),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) allow() bool {
	return s.rateLimiter == nil || s.rateLimiter.Allow()
}

// Register creates a member account.
func (s *service) Register(ctx context.Context, reg Registration) (*User, error) {
	if !s.allow() {
		return nil, ErrRateLimited
	}
	return s.create(ctx, reg, auth.RoleMember)
}

// CreateAdmin creates an administrator account. It is not rate limited
// and is only reachable from the command line.
func (s *service) CreateAdmin(ctx context.Context, reg Registration) (*User, error) {
	return s.create(ctx, reg, auth.RoleAdmin)
}

func (s *service) create(ctx context.Context, reg Registration, role auth.Role) (*User, error) {
	name := strings.TrimSpace(reg.Name)
	if name == "" || strings.TrimSpace(reg.Email) == "" || reg.Password == "" {
		return nil, ErrMissingFields
	}
	email, err := normalizeEmail(reg.Email)
	if err != nil {
		return nil, err
	}

	cred, err := hashPassword(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	cred.UserID = user.ID

	if err := s.repo.Create(ctx, user, cred); err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID, "role", role)
	return user, nil
}

// Authenticate verifies credentials. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (s *service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	if !s.allow() {
		return nil, ErrRateLimited
	}

	user, cred, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, dbx.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	ok, err := verifyPassword(password, cred)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.logger.Warn(ctx, "failed login", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser retrieves a user by id.
func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.repo.Get(ctx, id)
	if errors.Is(err, dbx.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateProfile changes name, email or password.
func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(upd.Name); name != "" {
		user.Name = name
	}
	if strings.TrimSpace(upd.Email) != "" {
		email, err := normalizeEmail(upd.Email)
		if err != nil {
			return nil, err
		}
		user.Email = email
	}

	var cred *Credential
	if upd.Password != "" {
		if cred, err = hashPassword(upd.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		cred.UserID = id
	}

	if err := s.repo.Update(ctx, user, cred); err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, apperr.Conflict("email already in use")
		}
		if errors.Is(err, dbx.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// DeleteUser removes the user. Dependent rows cascade.
func (s *service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, dbx.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info(ctx, "user deleted", "user_id", id)
	return nil
}

var validate = validator.New()

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if err := validate.Var(email, "required,email,max=120"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}
