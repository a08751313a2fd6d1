package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/cashcard-core/internal/card"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/logging"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/mqtt"
)

var testAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func createdEvent() card.Event {
	return card.Event{
		Type:  card.EventCreated,
		Card:  card.Card{ID: 99, Amount: decimal.RequireFromString("123.45"), Owner: "sarah1", Version: 1},
		Actor: "sarah1",
		At:    testAt,
	}
}

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, payload, qos, retained})
	return f.err
}

func TestMQTTSink_Publish(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, mqtt.NewTopics("cashcard"), 1, logging.Nop())

	sink.Publish(context.Background(), createdEvent())

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, "cashcard/cards/sarah1/created", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.False(t, msg.retained)
	assert.JSONEq(t,
		`{"event":"card.created","card":{"id":99,"amount":123.45,"owner":"sarah1"},"actor":"sarah1","at":"2026-03-01T09:00:00Z"}`,
		string(msg.payload))
}

func TestMQTTSink_PublishErrorIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker gone")}
	sink := NewMQTTSink(pub, mqtt.NewTopics("cashcard"), 0, nil)

	assert.NotPanics(t, func() {
		sink.Publish(context.Background(), createdEvent())
	})
	assert.Len(t, pub.msgs, 1)
}

type fakeWriter struct {
	op, owner string
	id        int64
	amount    float64
	at        time.Time
}

func (f *fakeWriter) WriteCardOperation(op, owner string, id int64, amount float64, at time.Time) {
	f.op, f.owner, f.id, f.amount, f.at = op, owner, id, amount, at
}

func TestInfluxSink_Publish(t *testing.T) {
	w := &fakeWriter{}
	NewInfluxSink(w).Publish(context.Background(), createdEvent())

	assert.Equal(t, "created", w.op)
	assert.Equal(t, "sarah1", w.owner)
	assert.Equal(t, int64(99), w.id)
	assert.InDelta(t, 123.45, w.amount, 1e-9)
	assert.Equal(t, testAt, w.at)
}

func TestCounterSink_Publish(t *testing.T) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_events_total"}, []string{"type"})
	sink := NewCounterSink(vec)

	sink.Publish(context.Background(), createdEvent())
	sink.Publish(context.Background(), card.Event{Type: card.EventDeleted})
	sink.Publish(context.Background(), card.Event{Type: card.EventDeleted})

	assert.Equal(t, 1.0, testutil.ToFloat64(vec.WithLabelValues("card.created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(vec.WithLabelValues("card.deleted")))
}

type recorder struct {
	mu     sync.Mutex
	events []card.Event
}

func (r *recorder) Publish(_ context.Context, e card.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestAsync_DeliversAndDrainsOnShutdown(t *testing.T) {
	rec := &recorder{}
	a := NewAsync("test", rec, 16, logging.Nop())

	// Queue before Run starts so shutdown has something to drain.
	for range 5 {
		a.Publish(context.Background(), createdEvent())
	}

	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)

	a.Publish(context.Background(), createdEvent())
	require.Eventually(t, func() bool { return rec.len() == 6 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestAsync_DropsWhenFull(t *testing.T) {
	rec := &recorder{}
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_dropped_total"}, []string{"sink"})
	a := NewAsync("mqtt", rec, 2, logging.Nop(), WithDropCounter(dropped))

	for range 5 {
		a.Publish(context.Background(), createdEvent())
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(dropped.WithLabelValues("mqtt")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.Run(ctx)

	assert.Equal(t, 2, rec.len(), "buffered events are drained on shutdown")
}

func TestMessage_JSONShape(t *testing.T) {
	e := card.Event{Type: card.EventDeleted, Card: card.Card{ID: 4, Owner: "kumar2"}, Actor: "kumar2", At: testAt}

	b, err := json.Marshal(NewMessage(e))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"event":"card.deleted","card":{"id":4,"amount":0,"owner":"kumar2"},"actor":"kumar2","at":"2026-03-01T09:00:00Z"}`,
		string(b))
}
