package events

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/cashcard-core/internal/card"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/logging"
)

// DefaultQueueSize is the event buffer used when a size of zero is given.
const DefaultQueueSize = 256

// Async delivers events to next from a single background goroutine.
type Async struct {
	name    string
	next    card.EventSink
	ch      chan card.Event
	logger  *logging.Logger
	dropped prometheus.Counter

	done     chan struct{}
	startOne sync.Once
}

// AsyncOption configures an Async sink.
type AsyncOption func(*Async)

// WithDropCounter counts dropped events on the "sink" label of vec.
func WithDropCounter(vec *prometheus.CounterVec) AsyncOption {
	return func(a *Async) {
		if vec != nil {
			a.dropped = vec.WithLabelValues(a.name)
		}
	}
}

// NewAsync wraps next. Call Run to start delivery.
func NewAsync(name string, next card.EventSink, size int, logger *logging.Logger, opts ...AsyncOption) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = logging.Nop()
	}
	a := &Async{
		name:   name,
		next:   next,
		ch:     make(chan card.Event, size),
		logger: logger,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Publish enqueues e without blocking. A full queue drops the event.
func (a *Async) Publish(_ context.Context, e card.Event) {
	select {
	case a.ch <- e:
	default:
		a.logger.Warn("event queue full, dropping event",
			"sink", a.name,
			"type", string(e.Type),
			"card_id", e.Card.ID,
		)
		if a.dropped != nil {
			a.dropped.Inc()
		}
	}
}

// Run delivers queued events until ctx is cancelled, then drains whatever
// is still buffered and returns. Only the first call does anything.
func (a *Async) Run(ctx context.Context) {
	a.startOne.Do(func() {
		defer close(a.done)
		for {
			select {
			case e := <-a.ch:
				a.next.Publish(context.Background(), e)
			case <-ctx.Done():
				for {
					select {
					case e := <-a.ch:
						a.next.Publish(context.Background(), e)
					default:
						return
					}
				}
			}
		}
	})
}

// Done is closed once Run has drained and returned.
func (a *Async) Done() <-chan struct{} {
	return a.done
}
