package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusHandler_ExposesSnapshot(t *testing.T) {
	m := New()
	m.Inc(PeersMatched)
	m.Add(SignalsRelayed, 2)
	m.Inc(`quote"back\slash`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	PrometheusHandler(m).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, want %d", rr.Code, http.StatusOK)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "# TYPE peerlounge_events_total counter") {
		t.Fatalf("missing TYPE header: %s", body)
	}
	if !strings.Contains(body, `peerlounge_events_total{event="signals_relayed"} 2`) {
		t.Fatalf("missing signals_relayed counter: %s", body)
	}
	if !strings.Contains(body, `peerlounge_events_total{event="peers_matched"} 1`) {
		t.Fatalf("missing peers_matched counter: %s", body)
	}
	// Ensure label escaping matches Prometheus text format rules.
	if !strings.Contains(body, `peerlounge_events_total{event="quote\"back\\slash"} 1`) {
		t.Fatalf("missing escaped counter: %s", body)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(PeersMatched)
	if got := m.Get(PeersMatched); got != 0 {
		t.Fatalf("Get on nil = %d, want 0", got)
	}
}
