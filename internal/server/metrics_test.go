package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/eugener/meridian/internal/app"
	"github.com/eugener/meridian/internal/ratelimit"
	"github.com/eugener/meridian/internal/telemetry"
)

type gaugeSink struct {
	mu      sync.Mutex
	samples map[string]int
}

func (g *gaugeSink) Gauge(name string, _ int64) {
	g.mu.Lock()
	if g.samples == nil {
		g.samples = make(map[string]int)
	}
	g.samples[name]++
	g.mu.Unlock()
}

func (g *gaugeSink) count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.samples[name]
}

func newMetricsHandler(t *testing.T) (http.Handler, *telemetry.Metrics, *gaugeSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	sink := &gaugeSink{}
	rec := telemetry.NewRouteRecorder(metrics, sink)

	f := newFakes()
	rt := app.NewReadThrough(app.ReadThroughConfig{Store: f.cache, TTL: 40e9, Metrics: metrics})
	h := New(Deps{
		Dictionary:     app.NewDictionaryService(f.dict, rt, rec),
		Quotes:         app.NewQuoteService(f.quotes, rec),
		News:           app.NewNewsService(f.news, 5, rt, rec),
		Recorder:       rec,
		RateLimiter:    ratelimit.NewRegistry(1000),
		Metrics:        metrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return h, metrics, sink, reg
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	h, _, _, _ := newMetricsHandler(t)

	// Hit a normal endpoint first to generate metrics.
	if rec := do(h, http.MethodGet, "/dictionary?word=hello"); rec.Code != http.StatusOK {
		t.Fatalf("dictionary: status = %d; body = %s", rec.Code, rec.Body.String())
	}

	// Now check /metrics.
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: status = %d; body = %s", rec.Code, rec.Body.String())
	}
	metricsBody := rec.Body.String()
	for _, name := range []string{
		"meridian_requests_total",
		"meridian_request_duration_seconds",
		"meridian_route_latency_seconds",
		"meridian_route_response_time_seconds",
		"meridian_cache_misses_total",
	} {
		if !strings.Contains(metricsBody, name) {
			t.Errorf("metrics should contain %s", name)
		}
	}
}

func TestMetricsNotMountedByDefault(t *testing.T) {
	t.Parallel()
	if rec := do(newTestHandler(), http.MethodGet, "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRouteGaugesPerRequest(t *testing.T) {
	t.Parallel()
	h, metrics, sink, _ := newMetricsHandler(t)

	do(h, http.MethodGet, "/dictionary?word=hello") // miss
	do(h, http.MethodGet, "/dictionary?word=hello") // hit
	do(h, http.MethodGet, "/quote")
	do(h, http.MethodGet, "/spaceflight_news")

	tests := []struct {
		name string
		want int
	}{
		{"latency.dictionary_latency", 2},
		{"throughput.dictionary_response_time", 2},
		{"latency.quote_latency", 1},
		{"throughput.quote_response_time", 1},
		{"latency.spaceflight_news_latency", 1},
		{"throughput.spaceflight_news_response_time", 1},
	}
	for _, tt := range tests {
		if got := sink.count(tt.name); got != tt.want {
			t.Errorf("%s samples = %d, want %d", tt.name, got, tt.want)
		}
	}

	if got := promtest.CollectAndCount(metrics.RouteResponseTime); got != 4 {
		t.Errorf("response time series = %d, want 4 (dictionary hit+miss, quote, news)", got)
	}
}

func TestMetricsMiddleware_IncrementsCounters(t *testing.T) {
	t.Parallel()
	h, _, _, reg := newMetricsHandler(t)

	// Make a few requests.
	for range 3 {
		do(h, http.MethodGet, "/healthz")
	}
	do(h, http.MethodGet, "/does-not-exist")

	// Gather metrics and check.
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	found := false
	for _, f := range families {
		if f.GetName() != "meridian_requests_total" {
			continue
		}
		found = true
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() != "path" {
					continue
				}
				switch l.GetValue() {
				case "/healthz":
					if m.GetCounter().GetValue() < 3 {
						t.Errorf("requests_total for /healthz = %f, want >= 3", m.GetCounter().GetValue())
					}
				case "/does-not-exist":
					t.Error("unmatched paths must not become label values")
				}
			}
		}
	}
	if !found {
		t.Error("meridian_requests_total metric not found")
	}
}

func TestRateLimitRejectsCounted(t *testing.T) {
	t.Parallel()

	metrics := telemetry.NewMetrics(prometheus.NewPedanticRegistry())
	d := newFakes().deps()
	d.Metrics = metrics
	d.RateLimiter = ratelimit.NewRegistry(1)
	h := New(d)

	do(h, http.MethodGet, "/quote")
	do(h, http.MethodGet, "/quote")

	if got := promtest.ToFloat64(metrics.RateLimitRejects); got != 1 {
		t.Errorf("rejects = %v, want 1", got)
	}
}
