package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing-32b"

func TestGenerateAndParseAccessToken(t *testing.T) {
	user := &User{ID: "usr-001", Username: "sarah1", Role: RoleCardOwner}

	token, expires, err := GenerateAccessToken(user, testSecret, 10*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateAccessToken() returned empty token")
	}
	if d := time.Until(expires); d < 9*time.Minute || d > 11*time.Minute {
		t.Errorf("expires in %v, want about 10m", d)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "usr-001" || claims.Username != "sarah1" || claims.Role != RoleCardOwner {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ID == "" {
		t.Error("JTI should not be empty")
	}
}

func TestParseToken_Rejects(t *testing.T) {
	user := &User{ID: "usr-001", Username: "sarah1", Role: RoleCardOwner}
	good, _, err := GenerateAccessToken(user, testSecret, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "usr-001",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: RoleCardOwner,
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "usr-001"},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, CustomClaims{Role: RoleCardOwner}).
		SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "usr-001"},
		Role:             RoleCardOwner,
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name, token, secret string
	}{
		{"garbage", "not-a-valid-jwt", testSecret},
		{"wrong secret", good, "another-secret-another-secret-xx"},
		{"expired", expired, testSecret},
		{"missing role", noRole, testSecret},
		{"missing subject", noSubject, testSecret},
		{"wrong algorithm", hs512, testSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.secret); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestTokenService(t *testing.T) {
	store, repo := testStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, "sarah1", "abc123", RoleCardOwner)
	if err != nil {
		t.Fatal(err)
	}

	tokens := NewTokenService(repo, testSecret, 0)
	if tokens.TTL() != defaultTokenTTL {
		t.Errorf("TTL() = %v, want default %v", tokens.TTL(), defaultTokenTTL)
	}

	token, _, err := tokens.Issue(ctx, id)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	got, err := tokens.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if *got != *id {
		t.Errorf("Authenticate() = %+v, want %+v", got, id)
	}

	u, err := repo.GetByUsername(ctx, "sarah1")
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.SetActive(ctx, u.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := tokens.Authenticate(ctx, token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Authenticate(deactivated) error = %v, want ErrTokenInvalid", err)
	}

	if err := repo.Delete(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := tokens.Authenticate(ctx, token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Authenticate(deleted) error = %v, want ErrTokenInvalid", err)
	}
	if _, _, err := tokens.Issue(ctx, id); err == nil {
		t.Error("Issue() for deleted user should fail")
	}
}
