package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/cashcard-core/internal/card"
)

// CounterSink increments vec, labelled by event type, for every event.
type CounterSink struct {
	vec *prometheus.CounterVec
}

// NewCounterSink creates a CounterSink. vec must have a single "type" label.
func NewCounterSink(vec *prometheus.CounterVec) *CounterSink {
	return &CounterSink{vec: vec}
}

// Publish implements card.EventSink.
func (s *CounterSink) Publish(_ context.Context, e card.Event) {
	s.vec.WithLabelValues(string(e.Type)).Inc()
}
