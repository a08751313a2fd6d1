package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/cashcard-core/internal/card"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/logging"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/mqtt"
)

// Publisher is the subset of *mqtt.Client used by MQTTSink.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Message is the JSON body published for each event.
type Message struct {
	Event string    `json:"event"`
	Card  card.Card `json:"card"`
	Actor string    `json:"actor"`
	At    time.Time `json:"at"`
}

// NewMessage builds the wire form of e.
func NewMessage(e card.Event) Message {
	return Message{
		Event: string(e.Type),
		Card:  e.Card,
		Actor: e.Actor,
		At:    e.At,
	}
}

// MQTTSink publishes events on <prefix>/cards/<owner>/<action>.
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
	logger *logging.Logger
}

// NewMQTTSink creates a sink publishing through pub.
func NewMQTTSink(pub Publisher, topics mqtt.Topics, qos byte, logger *logging.Logger) *MQTTSink {
	if logger == nil {
		logger = logging.Nop()
	}
	return &MQTTSink{pub: pub, topics: topics, qos: qos, logger: logger}
}

// Publish implements card.EventSink. Failures are logged, not returned.
func (s *MQTTSink) Publish(_ context.Context, e card.Event) {
	payload, err := json.Marshal(NewMessage(e))
	if err != nil {
		s.logger.Error("encoding card event", "type", string(e.Type), "error", err)
		return
	}

	topic := s.topics.CardEvent(e.Card.Owner, e.Type.Action())
	if err := s.pub.Publish(topic, payload, s.qos, false); err != nil {
		s.logger.Warn("publishing card event", "topic", topic, "error", err)
	}
}
