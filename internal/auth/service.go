package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultMaxAttempts = 5
	defaultLockWindow  = 15 * time.Minute
)

// Store is the slice of the user repository the service depends on.
type Store interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	EmailRegistered(ctx context.Context, email string) (bool, error)
	UpsertAdmin(ctx context.Context, user User) error
	GetLoginAttempt(ctx context.Context, email string) (LoginAttempt, error)
	RegisterFailedAttempt(ctx context.Context, email string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error)
	ResetLoginAttempt(ctx context.Context, email string) error
}

type Service struct {
	store        Store
	codec        *TokenCodec
	maxAttempts  int
	lockDuration time.Duration
	now          func() time.Time
}

func NewService(store Store, codec *TokenCodec) *Service {
	return &Service{
		store:        store,
		codec:        codec,
		maxAttempts:  defaultMaxAttempts,
		lockDuration: defaultLockWindow,
		now:          time.Now,
	}
}

func (s *Service) WithLockoutConfig(maxAttempts int, lockDuration time.Duration) {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if lockDuration > 0 {
		s.lockDuration = lockDuration
	}
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	hash, err := HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	user, err := s.store.CreateUser(ctx, User{
		ID:           id,
		Email:        normalizeEmail(input.Email),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Phone:        input.Phone,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return AuthResult{}, err
	}

	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return AuthResult{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	attempt, err := s.store.GetLoginAttempt(ctx, email)
	if err != nil {
		return AuthResult{}, err
	}
	if attempt.LockedUntil != nil && now.Before(*attempt.LockedUntil) {
		return AuthResult{}, ErrLoginLocked{Until: *attempt.LockedUntil}
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return AuthResult{}, s.failedAttempt(ctx, email, now)
		}
		return AuthResult{}, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return AuthResult{}, err
	}
	if !ok {
		return AuthResult{}, s.failedAttempt(ctx, email, now)
	}

	if err := s.store.ResetLoginAttempt(ctx, email); err != nil {
		return AuthResult{}, err
	}

	return s.issue(user)
}

func (s *Service) CurrentUser(ctx context.Context, id uuid.UUID) (User, error) {
	return s.store.GetByID(ctx, id)
}

// Refresh issues a new token for an already authenticated subject. The old
// token stays valid until its own expiry.
func (s *Service) Refresh(identity Identity) (string, error) {
	return s.codec.Issue(identity.UserID)
}

// BootstrapAdmin makes sure an administrator with the given credentials exists.
func (s *Service) BootstrapAdmin(ctx context.Context, email, password, firstName, lastName string) error {
	email = normalizeEmail(email)
	if email == "" && password == "" {
		return nil
	}
	if email == "" || password == "" {
		return errors.New("admin email and password are required together")
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate uuid v7: %w", err)
	}

	if firstName == "" {
		firstName = "Admin"
	}

	return s.store.UpsertAdmin(ctx, User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		IsAdmin:      true,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	})
}

func (s *Service) issue(user User) (AuthResult, error) {
	token, err := s.codec.Issue(user.ID)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{Token: token, User: user.Response()}, nil
}

func (s *Service) failedAttempt(ctx context.Context, email string, now time.Time) error {
	lockedUntil, err := s.store.RegisterFailedAttempt(ctx, email, s.maxAttempts, s.lockDuration, now)
	if err != nil {
		return err
	}
	if lockedUntil != nil {
		return ErrLoginLocked{Until: *lockedUntil}
	}
	return ErrInvalidCredentials
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
