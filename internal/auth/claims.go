package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = 15 * time.Minute

// CustomClaims extends JWT standard claims with the caller's role.
type CustomClaims struct {
	jwt.RegisteredClaims
	Username string `json:"usr"`
	Role     Role   `json:"role"`
}

// GenerateAccessToken creates a signed HS256 access token for user.
func GenerateAccessToken(user *User, secret string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	now := time.Now()
	expires := now.Add(ttl)
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
		Username: user.Username,
		Role:     user.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken validates signature, expiry and required fields of an access token.
func ParseToken(tokenString, secret string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrTokenInvalid)
	}
	return claims, nil
}

// TokenService issues bearer tokens and turns them back into identities.
type TokenService struct {
	users  UserRepository
	secret string
	ttl    time.Duration
}

// NewTokenService creates a TokenService signing with secret.
func NewTokenService(users UserRepository, secret string, ttl time.Duration) *TokenService {
	return &TokenService{users: users, secret: secret, ttl: ttl}
}

// Issue signs a token for an already authenticated identity.
func (t *TokenService) Issue(ctx context.Context, id *Identity) (string, time.Time, error) {
	user, err := t.users.GetByUsername(ctx, id.Username)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("loading user for token: %w", err)
	}
	return GenerateAccessToken(user, t.secret, t.ttl)
}

// Authenticate validates a bearer token. The account is re-read so that
// deactivated or deleted users lose access before the token expires, and
// the role comes from the account rather than the token.
func (t *TokenService) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := ParseToken(token, t.secret)
	if err != nil {
		return nil, err
	}

	user, err := t.users.GetByID(ctx, claims.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("loading token subject: %w", err)
	}
	if !user.IsActive {
		return nil, ErrTokenInvalid
	}
	return user.identity(), nil
}

// TTL returns the lifetime of issued tokens.
func (t *TokenService) TTL() time.Duration {
	if t.ttl <= 0 {
		return defaultTokenTTL
	}
	return t.ttl
}
