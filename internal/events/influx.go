package events

import (
	"context"
	"time"

	"github.com/nerrad567/cashcard-core/internal/card"
)

// PointWriter is the subset of *influxdb.Client used by InfluxSink.
type PointWriter interface {
	WriteCardOperation(operation, owner string, cardID int64, amount float64, at time.Time)
}

// InfluxSink records each event as a card_operations point.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Publish implements card.EventSink.
func (s *InfluxSink) Publish(_ context.Context, e card.Event) {
	amount, _ := e.Card.Amount.Float64()
	s.w.WriteCardOperation(e.Type.Action(), e.Card.Owner, e.Card.ID, amount, e.At)
}
