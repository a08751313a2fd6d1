package card

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/cashcard-core/internal/infrastructure/logging"
	"github.com/nerrad567/cashcard-core/internal/pagination"
)

// ErrNoOwner is returned when an operation is attempted without a caller.
var ErrNoOwner = errors.New("card operation requires an owner")

// Service runs the card lifecycle on behalf of an authenticated caller.
// The caller's username is the only source of ownership: it is stamped on
// every saved card and used to scope every read.
type Service struct {
	store  Store
	sinks  Sinks
	logger *logging.Logger
	now    func() time.Time
}

// NewService creates a Service. Sinks receive an event after each
// successful create, update and delete.
func NewService(store Store, logger *logging.Logger, sinks ...EventSink) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		store:  store,
		sinks:  Sinks(sinks),
		logger: logger,
		now:    time.Now,
	}
}

// Create saves a new card owned by owner and returns it with its ID.
func (s *Service) Create(ctx context.Context, owner string, d Draft) (*Card, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}

	saved, err := s.store.Save(ctx, Card{Amount: d.Amount, Owner: owner})
	if err != nil {
		return nil, fmt.Errorf("creating card: %w", err)
	}

	s.logger.Debug("card created", "card_id", saved.ID, "owner", owner)
	s.publish(ctx, EventCreated, *saved, owner)
	return saved, nil
}

// Get returns owner's card id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64, owner string) (*Card, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	return s.store.Get(ctx, id, owner)
}

// List returns one page of owner's cards.
func (s *Service) List(ctx context.Context, owner string, req pagination.PageRequest) (*Page, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	return s.store.ListByOwner(ctx, owner, req)
}

// Update replaces the amount of owner's card id. The id never changes and
// the owner is re-stamped to the caller. A non-zero expectedVersion makes
// the update conditional; a mismatch returns ErrConflict.
func (s *Service) Update(ctx context.Context, id int64, owner string, d Draft, expectedVersion int64) (*Card, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}

	current, err := s.store.Get(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if expectedVersion != 0 && current.Version != expectedVersion {
		return nil, fmt.Errorf("%w: card %d is at version %d", ErrConflict, id, current.Version)
	}

	saved, err := s.store.Save(ctx, Card{
		ID:      current.ID,
		Amount:  d.Amount,
		Owner:   owner,
		Version: expectedVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("updating card %d: %w", id, err)
	}

	s.logger.Debug("card updated", "card_id", id, "owner", owner, "version", saved.Version)
	s.publish(ctx, EventUpdated, *saved, owner)
	return saved, nil
}

// Delete removes owner's card id. A card that is absent or owned by
// someone else returns ErrNotFound and nothing is removed.
func (s *Service) Delete(ctx context.Context, id int64, owner string) error {
	if owner == "" {
		return ErrNoOwner
	}

	ok, err := s.store.Exists(ctx, id, owner)
	if err != nil {
		return fmt.Errorf("deleting card %d: %w", id, err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting card %d: %w", id, err)
	}

	s.logger.Debug("card deleted", "card_id", id, "owner", owner)
	s.publish(ctx, EventDeleted, Card{ID: id, Owner: owner}, owner)
	return nil
}

func (s *Service) publish(ctx context.Context, t EventType, c Card, actor string) {
	if len(s.sinks) == 0 {
		return
	}
	s.sinks.Publish(ctx, Event{Type: t, Card: c, Actor: actor, At: s.now().UTC()})
}
