package card

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/cashcard-core/internal/pagination"
)

// SQLiteStore is a Store backed by the cashcards table in SQLite.
//
// Amounts are stored as canonical decimal TEXT: a NUMERIC column would
// convert them to REAL and round anything past float64 precision.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over a migrated SQLite database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id int64, owner string) (*Card, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, amount, owner, version FROM cashcards WHERE id = ? AND owner = ?`,
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
func (s *SQLiteStore) Exists(ctx context.Context, id int64, owner string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cashcards WHERE id = ? AND owner = ?`,
		id, owner,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking card %d: %w", id, err)
	}
	return n > 0, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, c Card) (*Card, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	switch {
	case c.ID == 0:
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO cashcards (amount, owner, version, created_at, updated_at)
			 VALUES (?, ?, 1, ?, ?) RETURNING id, version`,
			c.Amount.String(), c.Owner, now, now,
		).Scan(&c.ID, &c.Version)
		if err != nil {
			return nil, fmt.Errorf("inserting card: %w", err)
		}

	case c.Version != 0:
		err := s.db.QueryRowContext(ctx,
			`UPDATE cashcards SET amount = ?, owner = ?, version = version + 1, updated_at = ?
			 WHERE id = ? AND version = ? RETURNING version`,
			c.Amount.String(), c.Owner, now, c.ID, c.Version,
		).Scan(&c.Version)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: card %d", ErrConflict, c.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("updating card %d: %w", c.ID, err)
		}

	default:
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO cashcards (id, amount, owner, version, created_at, updated_at)
			 VALUES (?, ?, ?, 1, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			     amount = excluded.amount,
			     owner = excluded.owner,
			     version = cashcards.version + 1,
			     updated_at = excluded.updated_at
			 RETURNING version`,
			c.ID, c.Amount.String(), c.Owner, now, now,
		).Scan(&c.Version)
		if err != nil {
			return nil, fmt.Errorf("saving card %d: %w", c.ID, err)
		}
	}
	return &c, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cashcards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting card %d: %w", id, err)
	}
	return nil
}

// ListByOwner implements Store.
func (s *SQLiteStore) ListByOwner(ctx context.Context, owner string, req pagination.PageRequest) (*Page, error) {
	order, err := orderBy(req, sqliteSortColumns)
	if err != nil {
		return nil, err
	}

	page := &Page{Page: req.Page, Size: req.Size, Items: []Card{}}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cashcards WHERE owner = ?`, owner,
	).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("counting cards: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, amount, owner, version FROM cashcards WHERE owner = ? `+order+` LIMIT ? OFFSET ?`,
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

type scanner interface {
	Scan(dest ...any) error
}

func scanCard(s scanner) (*Card, error) {
	var c Card
	if err := s.Scan(&c.ID, &c.Amount, &c.Owner, &c.Version); err != nil {
		return nil, err
	}
	return &c, nil
}
