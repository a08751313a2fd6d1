package audit

import (
	"context"

	"github.com/nerrad567/cashcard-core/internal/card"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/logging"
)

// Entity types and sources written by this service.
const (
	EntityCard = "cashcard"
	EntityUser = "user"

	SourceAPI = "api"
	SourceCLI = "cli"
)

// Sink writes one audit log per card event. It blocks on the repository,
// so wrap it in events.Async on request paths.
type Sink struct {
	repo   Repository
	logger *logging.Logger
}

// NewSink creates a Sink over repo.
func NewSink(repo Repository, logger *logging.Logger) *Sink {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Sink{repo: repo, logger: logger}
}

// Publish implements card.EventSink.
func (s *Sink) Publish(ctx context.Context, e card.Event) {
	if err := s.repo.Create(ctx, FromCardEvent(e)); err != nil {
		s.logger.Error("audit log write failed",
			"action", e.Type.Action(),
			"card_id", e.Card.ID,
			"error", err,
		)
	}
}

// FromCardEvent converts a card event into an audit log entry.
func FromCardEvent(e card.Event) *AuditLog {
	log := &AuditLog{
		Action:     e.Type.Action(),
		EntityType: EntityCard,
		EntityID:   card.FormatID(e.Card.ID),
		UserID:     e.Actor,
		Source:     SourceAPI,
		CreatedAt:  e.At,
	}
	if e.Type != card.EventDeleted {
		log.Details = map[string]any{
			"amount":  e.Card.Amount.String(),
			"version": e.Card.Version,
		}
	}
	return log
}
