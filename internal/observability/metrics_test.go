package observability

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestMetrics() *Metrics {
	return NewMetrics(zerolog.Nop())
}

func TestCounterIncAccumulatesPerLabelSet(t *testing.T) {
	m := newTestMetrics()
	m.CounterInc("fuelsync_test_total", map[string]string{"station": "a"})
	m.CounterInc("fuelsync_test_total", map[string]string{"station": "a"})
	m.CounterInc("fuelsync_test_total", map[string]string{"station": "b"})

	if got := m.getCounter("fuelsync_test_total", map[string]string{"station": "a"}).Value(); got != 2 {
		t.Fatalf("expected station=a counter 2, got %d", got)
	}
	if got := m.getCounter("fuelsync_test_total", map[string]string{"station": "b"}).Value(); got != 1 {
		t.Fatalf("expected station=b counter 1, got %d", got)
	}
}

func TestGaugeSetTracksLastValue(t *testing.T) {
	m := newTestMetrics()
	m.GaugeSet("fuelsync_tank_level_litres", map[string]string{"tank": "t1"}, 4200.5)
	m.GaugeSet("fuelsync_tank_level_litres", map[string]string{"tank": "t1"}, 3900.25)

	if got := m.getGauge("fuelsync_tank_level_litres", map[string]string{"tank": "t1"}).Value(); got != 3900.25 {
		t.Fatalf("expected gauge 3900.25, got %f", got)
	}
}

func TestHistogramObserveBucketsValues(t *testing.T) {
	m := newTestMetrics()
	m.HistogramObserve("fuelsync_http_request_duration_ms", map[string]string{"route": "/readings"}, 12)
	m.HistogramObserve("fuelsync_http_request_duration_ms", map[string]string{"route": "/readings"}, 600)

	h := m.getHistogram("fuelsync_http_request_duration_ms", map[string]string{"route": "/readings"}, m.latencyBuckets)
	if h.count != 2 {
		t.Fatalf("expected 2 observations, got %d", h.count)
	}
	if h.sum != 612 {
		t.Fatalf("expected sum 612, got %f", h.sum)
	}
}

func TestTrackHelpersExposeViaHandler(t *testing.T) {
	m := newTestMetrics()
	m.TrackReadingCreated("station-1", "petrol", 42.5)
	m.TrackHandoverOutcome("shift_collection", "confirmed")
	m.TrackCreditRefusal("CREDIT_LIMIT_EXCEEDED")
	m.TrackTankLevel("tank-1", "active", 3500)
	m.TrackQuotaRefusal("owner-1", "stations")
	m.TrackHTTPRequest("POST", "/v1/readings", 201, 37.2)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler()(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"fuelsync_readings_created_total",
		"fuelsync_handovers_total",
		"fuelsync_credit_refusals_total",
		"fuelsync_tank_level_litres",
		"fuelsync_quota_refusals_total",
		"fuelsync_http_requests_total",
		"fuelsync_http_request_duration_ms",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected /metrics output to contain %q, got:\n%s", want, body)
		}
	}
}
