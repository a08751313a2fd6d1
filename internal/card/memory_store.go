package card

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/cashcard-core/internal/pagination"
)

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	cards  map[int64]Card
	nextID int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cards:  make(map[int64]Card),
		nextID: 1,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id int64, owner string) (*Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[id]
	if !ok || c.Owner != owner {
		return nil, ErrNotFound
	}
	return &c, nil
}

// Exists implements Store.
func (s *MemoryStore) Exists(_ context.Context, id int64, owner string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[id]
	return ok && c.Owner == owner, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, c Card) (*Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == 0 {
		c.ID = s.nextID
		s.nextID++
		c.Version = 1
		s.cards[c.ID] = c
		return &c, nil
	}

	current, exists := s.cards[c.ID]
	switch {
	case c.Version != 0 && (!exists || current.Version != c.Version):
		return nil, fmt.Errorf("%w: card %d", ErrConflict, c.ID)
	case exists:
		c.Version = current.Version + 1
	default:
		c.Version = 1
	}
	if c.ID >= s.nextID {
		s.nextID = c.ID + 1
	}
	s.cards[c.ID] = c
	return &c, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cards, id)
	return nil
}

// ListByOwner implements Store.
func (s *MemoryStore) ListByOwner(_ context.Context, owner string, req pagination.PageRequest) (*Page, error) {
	for _, o := range req.Orders {
		if _, ok := sortColumns[o.Field]; !ok {
			return nil, fmt.Errorf("%w: cannot sort by %q", pagination.ErrInvalid, o.Field)
		}
	}

	s.mu.RLock()
	owned := make([]Card, 0)
	for _, c := range s.cards {
		if c.Owner == owner {
			owned = append(owned, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		return less(owned[i], owned[j], req.Orders)
	})

	page := &Page{Total: len(owned), Page: req.Page, Size: req.Size, Items: []Card{}}
	start := req.Offset()
	if start >= len(owned) {
		return page, nil
	}
	end := min(start+req.Size, len(owned))
	page.Items = append(page.Items, owned[start:end]...)
	return page, nil
}

// less orders a before b by orders, falling back to id so the result is total.
func less(a, b Card, orders []pagination.Order) bool {
	for _, o := range orders {
		var cmp int
		switch o.Field {
		case "amount":
			cmp = a.Amount.Cmp(b.Amount)
		case "id":
			cmp = compareInt64(a.ID, b.ID)
		}
		if cmp == 0 {
			continue
		}
		if o.Direction == pagination.Desc {
			return cmp > 0
		}
		return cmp < 0
	}
	return a.ID < b.ID
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
