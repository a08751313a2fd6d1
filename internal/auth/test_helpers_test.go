package auth

import (
	"context"
	"database/sql"
	"testing"

	"github.com/nerrad567/cashcard-core/internal/infrastructure/database"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/logging"
	_ "github.com/nerrad567/cashcard-core/migrations"
)

// testDB opens an in-memory SQLite database with the full schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

// testStore returns an IdentityStore over a fresh database.
func testStore(t *testing.T) (*IdentityStore, *SQLiteUserRepository) {
	t.Helper()
	repo := NewUserRepository(testDB(t))
	return NewIdentityStore(repo, logging.Nop()), repo
}

// countingVerifier records how often Verify reaches it.
type countingVerifier struct {
	calls int
	id    *Identity
	err   error
}

func (c *countingVerifier) Verify(_ context.Context, _, _ string) (*Identity, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.id, nil
}
