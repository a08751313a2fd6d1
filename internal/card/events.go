package card

import (
	"context"
	"strings"
	"time"
)

// EventType names a card lifecycle change.
type EventType string

// Lifecycle events.
const (
	EventCreated EventType = "card.created"
	EventUpdated EventType = "card.updated"
	EventDeleted EventType = "card.deleted"
)

// Action returns the type without its "card." prefix, e.g. "created".
func (t EventType) Action() string {
	return strings.TrimPrefix(string(t), "card.")
}

// Event describes a committed change to a card. For EventDeleted only
// Card.ID and Card.Owner are set.
type Event struct {
	Type  EventType
	Card  Card
	Actor string
	At    time.Time
}

// EventSink receives lifecycle events after they are committed.
// Publish must not block the caller for long and never fails the
// operation that produced the event.
type EventSink interface {
	Publish(ctx context.Context, e Event)
}

// Sinks fans an event out to every sink in order.
type Sinks []EventSink

// Publish implements EventSink.
func (s Sinks) Publish(ctx context.Context, e Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Publish(ctx, e)
		}
	}
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, e Event)

// Publish implements EventSink.
func (f SinkFunc) Publish(ctx context.Context, e Event) { f(ctx, e) }
