package card

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/cashcard-core/internal/pagination"
)

// Store persists cards. Every read is parameterised by owner and matches
// only cards with that owner: a card held by someone else is reported
// exactly like a card that does not exist.
type Store interface {
	// Get returns the card with id owned by owner, or ErrNotFound.
	Get(ctx context.Context, id int64, owner string) (*Card, error)

	// Exists reports whether a card with id is owned by owner.
	Exists(ctx context.Context, id int64, owner string) (bool, error)

	// Save inserts a card when ID is zero, assigning a new ID. Otherwise it
	// upserts by ID. A non-zero Version makes the write conditional on the
	// stored version and fails with ErrConflict on mismatch. Save does not
	// filter by owner; the caller stamps Owner before saving.
	Save(ctx context.Context, c Card) (*Card, error)

	// Delete removes the card with id. Deleting a missing card is not an error.
	Delete(ctx context.Context, id int64) error

	// ListByOwner returns one ordered page of owner's cards.
	ListByOwner(ctx context.Context, owner string, req pagination.PageRequest) (*Page, error)
}

// Page is one page of a listing plus its metadata.
type Page struct {
	Items []Card
	Total int
	Page  int
	Size  int
}

// sortColumns maps sortable fields to SQL expressions. Client input never
// reaches SQL text except through these tables.
var sortColumns = map[string]string{
	"id":     "id",
	"amount": "amount",
}

// sqliteSortColumns sorts the TEXT amount column numerically.
var sqliteSortColumns = map[string]string{
	"id":     "id",
	"amount": "CAST(amount AS REAL)",
}

// orderBy renders an ORDER BY clause for req using columns.
func orderBy(req pagination.PageRequest, columns map[string]string) (string, error) {
	if len(req.Orders) == 0 {
		return "ORDER BY id ASC", nil
	}
	terms := make([]string, 0, len(req.Orders))
	for _, o := range req.Orders {
		col, ok := columns[o.Field]
		if !ok {
			return "", fmt.Errorf("%w: cannot sort by %q", pagination.ErrInvalid, o.Field)
		}
		dir := "ASC"
		if o.Direction == pagination.Desc {
			dir = "DESC"
		}
		terms = append(terms, col+" "+dir)
	}
	return "ORDER BY " + strings.Join(terms, ", "), nil
}
