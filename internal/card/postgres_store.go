package card

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nerrad567/cashcard-core/internal/pagination"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS cashcards (
    id         BIGSERIAL PRIMARY KEY,
    amount     NUMERIC NOT NULL,
    owner      TEXT NOT NULL,
    version    BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_cashcards_owner_amount ON cashcards (owner, amount, id);
`

// PostgresStore is a Store backed by Postgres through lib/pq.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an open Postgres pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the cashcards table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("creating postgres schema: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id int64, owner string) (*Card, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, amount, owner, version FROM cashcards WHERE id = $1 AND owner = $2`,
		id, owner,
	)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying card %d: %w", id, err)
	}
	return c, nil
}

// Exists implements Store.
func (s *PostgresStore) Exists(ctx context.Context, id int64, owner string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM cashcards WHERE id = $1 AND owner = $2)`,
		id, owner,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking card %d: %w", id, err)
	}
	return ok, nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, c Card) (*Card, error) {
	switch {
	case c.ID == 0:
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO cashcards (amount, owner) VALUES ($1, $2) RETURNING id, version`,
			c.Amount, c.Owner,
		).Scan(&c.ID, &c.Version)
		if err != nil {
			return nil, fmt.Errorf("inserting card: %w", err)
		}

	case c.Version != 0:
		err := s.db.QueryRowContext(ctx,
			`UPDATE cashcards SET amount = $1, owner = $2, version = version + 1, updated_at = now()
			 WHERE id = $3 AND version = $4 RETURNING version`,
			c.Amount, c.Owner, c.ID, c.Version,
		).Scan(&c.Version)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: card %d", ErrConflict, c.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("updating card %d: %w", c.ID, err)
		}

	default:
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO cashcards (id, amount, owner) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET
			     amount = EXCLUDED.amount,
			     owner = EXCLUDED.owner,
			     version = cashcards.version + 1,
			     updated_at = now()
			 RETURNING version`,
			c.ID, c.Amount, c.Owner,
		).Scan(&c.Version)
		if err != nil {
			return nil, fmt.Errorf("saving card %d: %w", c.ID, err)
		}
	}
	return &c, nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cashcards WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting card %d: %w", id, err)
	}
	return nil
}

// ListByOwner implements Store.
func (s *PostgresStore) ListByOwner(ctx context.Context, owner string, req pagination.PageRequest) (*Page, error) {
	order, err := orderBy(req, sortColumns)
	if err != nil {
		return nil, err
	}

	page := &Page{Page: req.Page, Size: req.Size, Items: []Card{}}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cashcards WHERE owner = $1`, owner,
	).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("counting cards: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, amount, owner, version FROM cashcards WHERE owner = $1 `+order+` LIMIT $2 OFFSET $3`,
		owner, req.Size, req.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning card: %w", err)
		}
		page.Items = append(page.Items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cards: %w", err)
	}
	return page, nil
}
