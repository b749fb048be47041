package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	gateway "github.com/eugener/meridian/internal"
)

type recordingGauger struct {
	mu      sync.Mutex
	samples map[string]int64
}

func (g *recordingGauger) Gauge(name string, value int64) {
	g.mu.Lock()
	if g.samples == nil {
		g.samples = make(map[string]int64)
	}
	g.samples[name] = value
	g.mu.Unlock()
}

func TestRouteRecorder(t *testing.T) {
	t.Parallel()

	m := NewMetrics(prometheus.NewPedanticRegistry())
	g := &recordingGauger{}
	r := NewRouteRecorder(m, g)

	r.Latency(gateway.RouteDictionary, gateway.CacheMiss, 120*time.Millisecond)
	r.ResponseTime(gateway.RouteDictionary, gateway.CacheMiss, 130*time.Millisecond)
	r.CacheResult(gateway.RouteDictionary, gateway.CacheMiss)
	r.CacheResult(gateway.RouteDictionary, gateway.CacheHit)
	r.CacheResult(gateway.RouteQuote, gateway.CacheBypass)

	if got := g.samples["latency.dictionary_latency"]; got != 120 {
		t.Errorf("latency gauge = %d, want 120", got)
	}
	if got := g.samples["throughput.dictionary_response_time"]; got != 130 {
		t.Errorf("response time gauge = %d, want 130", got)
	}
	if got := testutil.ToFloat64(m.RouteLatency.WithLabelValues("dictionary", "miss")); got != 0.12 {
		t.Errorf("prometheus latency = %v, want 0.12", got)
	}
	if got := testutil.ToFloat64(m.CacheHits.WithLabelValues("dictionary")); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheMisses.WithLabelValues("dictionary")); got != 1 {
		t.Errorf("cache misses = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.CacheHits); got != 1 {
		t.Errorf("cache hit series = %d, want 1 (bypass not counted)", got)
	}
}

func TestRouteRecorder_MetricNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		route        string
		latency      string
		responseTime string
	}{
		{gateway.RouteDictionary, "latency.dictionary_latency", "throughput.dictionary_response_time"},
		{gateway.RouteQuote, "latency.quote_latency", "throughput.quote_response_time"},
		{gateway.RouteSpaceflightNews, "latency.spaceflight_news_latency", "throughput.spaceflight_news_response_time"},
	}
	for _, tt := range tests {
		if got := LatencyName(tt.route); got != tt.latency {
			t.Errorf("LatencyName(%q) = %q, want %q", tt.route, got, tt.latency)
		}
		if got := ResponseTimeName(tt.route); got != tt.responseTime {
			t.Errorf("ResponseTimeName(%q) = %q, want %q", tt.route, got, tt.responseTime)
		}
	}
}

func TestRouteRecorder_NilSinks(t *testing.T) {
	t.Parallel()

	var nilRecorder *RouteRecorder
	nilRecorder.Latency(gateway.RouteQuote, gateway.CacheBypass, time.Millisecond)
	nilRecorder.ResponseTime(gateway.RouteQuote, gateway.CacheBypass, time.Millisecond)
	nilRecorder.CacheResult(gateway.RouteQuote, gateway.CacheHit)

	r := NewRouteRecorder(nil, nil)
	r.Latency(gateway.RouteQuote, gateway.CacheBypass, time.Millisecond)
	r.ResponseTime(gateway.RouteQuote, gateway.CacheBypass, time.Millisecond)
	r.CacheResult(gateway.RouteQuote, gateway.CacheHit)
}

func TestSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}
