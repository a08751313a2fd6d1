package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern: alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

const maxUsernameLength = 64

// minPasswordLength is the shortest password accepted by /createuser.
const minPasswordLength = 6

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// Role is an authorisation tier. The set is closed.
type Role string

const (
	// RoleCardOwner may use the card endpoints. Which cards it sees is
	// decided by ownership in the store, not here.
	RoleCardOwner Role = "CARD-OWNER"

	// RoleNonOwner can authenticate but is refused every card endpoint.
	RoleNonOwner Role = "NON-OWNER"
)

// ValidRoles is the set of assignable roles.
var ValidRoles = []Role{RoleCardOwner, RoleNonOwner}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// User is a persisted account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the authenticated principal of one request. It is immutable
// once attached to a request context.
type Identity struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// HasRole reports whether the identity holds role r.
func (i *Identity) HasRole(r Role) bool {
	return i != nil && i.Role == r
}

func (u *User) identity() *Identity {
	return &Identity{Username: u.Username, Role: u.Role}
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidRole        = errors.New("invalid role")
	ErrWeakPassword       = errors.New("password too short")
	ErrTokenInvalid       = errors.New("invalid token")

	// ErrUnauthenticated means credentials were missing or did not verify.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means the caller authenticated but lacks the required role.
	ErrForbidden = errors.New("insufficient permissions")
)
