package auth

import (
	"context"
	"errors"
	"fmt"
)

// SeedUser is an account to create at startup if absent.
type SeedUser struct {
	Username string
	Password string
	Role     Role
}

// SeedUsers creates each configured account that does not exist yet.
// Existing accounts are left untouched, so restarting is idempotent.
// Returns the number of accounts created.
func SeedUsers(ctx context.Context, store *IdentityStore, users []SeedUser) (int, error) {
	created := 0
	for _, u := range users {
		_, err := store.Create(ctx, u.Username, u.Password, u.Role)
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrUsernameExists):
			store.logger.Debug("seed user exists, skipping", "username", u.Username)
		default:
			return created, fmt.Errorf("seeding user %q: %w", u.Username, err)
		}
	}
	return created, nil
}
