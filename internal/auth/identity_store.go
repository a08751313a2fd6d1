package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/cashcard-core/internal/infrastructure/logging"
)

// Verifier checks a username/password pair and returns the matching identity.
type Verifier interface {
	Verify(ctx context.Context, username, password string) (*Identity, error)
}

// IdentityStore verifies credentials and provisions accounts on top of a
// UserRepository.
type IdentityStore struct {
	users  UserRepository
	logger *logging.Logger

	// dummyHash is verified against when the username is unknown so that
	// unknown users and wrong passwords take the same time.
	dummyOnce sync.Once
	dummyHash string
}

// NewIdentityStore creates an IdentityStore.
func NewIdentityStore(users UserRepository, logger *logging.Logger) *IdentityStore {
	return &IdentityStore{
		users:  users,
		logger: logger.With("component", "identity-store"),
	}
}

// Verify returns the identity for valid credentials. Unknown users, wrong
// passwords and inactive accounts all yield ErrInvalidCredentials.
func (s *IdentityStore) Verify(ctx context.Context, username, password string) (*Identity, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		s.burnDummyHash(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash unreadable", "user_id", user.ID, "error", err)
		return nil, ErrInvalidCredentials
	}
	if !ok || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	return user.identity(), nil
}

// Create provisions a new active account and returns its identity.
func (s *IdentityStore) Create(ctx context.Context, username, password string, role Role) (*Identity, error) {
	if !IsValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	if !IsValidRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user_id", user.ID, "username", username, "role", role)
	return user.identity(), nil
}

// upgradeHash re-hashes a bcrypt or outdated Argon2id hash after a
// successful login. Failures are logged and otherwise ignored.
func (s *IdentityStore) upgradeHash(ctx context.Context, user *User, password string) {
	hash, err := HashPassword(password)
	if err != nil {
		s.logger.Warn("password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		s.logger.Warn("storing rehashed password failed", "user_id", user.ID, "error", err)
		return
	}
	s.logger.Info("password hash upgraded", "user_id", user.ID)
}

func (s *IdentityStore) burnDummyHash(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = HashPassword("dummy-password-for-timing") //nolint:errcheck // only used for timing
	})
	if s.dummyHash != "" {
		_, _ = VerifyPassword(password, s.dummyHash) //nolint:errcheck // result discarded
	}
}
