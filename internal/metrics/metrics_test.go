package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	m.CardEvents.WithLabelValues("card.created").Inc()
	m.CardEvents.WithLabelValues("card.created").Inc()
	m.AuthFailures.WithLabelValues("forbidden").Inc()

	if got := testutil.ToFloat64(m.CardEvents.WithLabelValues("card.created")); got != 2 {
		t.Errorf("card_events_total{created} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.AuthFailures.WithLabelValues("forbidden")); got != 1 {
		t.Errorf("auth_failures_total{forbidden} = %v, want 1", got)
	}
}

func TestNew_SameRegistryTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := New(reg); err != nil {
		t.Errorf("second New() on the same registry error = %v", err)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	m.HTTPRequests.WithLabelValues("GET", "/cashcards/{id}", "200").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`cashcard_http_requests_total{method="GET",route="/cashcards/{id}",status="200"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
