package telemetry

import (
	"time"

	gateway "github.com/eugener/meridian/internal"
)

// Gauger accepts fire-and-forget gauge samples.
type Gauger interface {
	Gauge(name string, value int64)
}

// RouteRecorder records the two per-route metric families:
// latency.<route>_latency and throughput.<route>_response_time.
// A nil *RouteRecorder records nothing.
type RouteRecorder struct {
	metrics *Metrics // nil = no Prometheus mirror
	gauges  Gauger   // nil = no StatsD
}

// NewRouteRecorder returns a recorder writing to the given sinks; either may be nil.
func NewRouteRecorder(m *Metrics, g Gauger) *RouteRecorder {
	return &RouteRecorder{metrics: m, gauges: g}
}

// LatencyName returns the StatsD name of the latency family for route.
func LatencyName(route string) string { return "latency." + route + "_latency" }

// ResponseTimeName returns the StatsD name of the throughput family for route.
func ResponseTimeName(route string) string { return "throughput." + route + "_response_time" }

// Latency records time spent in the upstream call, or in the cache read on a hit.
func (r *RouteRecorder) Latency(route string, cache gateway.CacheStatus, d time.Duration) {
	if r == nil {
		return
	}
	if r.gauges != nil {
		r.gauges.Gauge(LatencyName(route), d.Milliseconds())
	}
	if r.metrics != nil {
		r.metrics.RouteLatency.WithLabelValues(route, string(cache)).Set(d.Seconds())
	}
}

// ResponseTime records total handler wall-clock time.
func (r *RouteRecorder) ResponseTime(route string, cache gateway.CacheStatus, d time.Duration) {
	if r == nil {
		return
	}
	if r.gauges != nil {
		r.gauges.Gauge(ResponseTimeName(route), d.Milliseconds())
	}
	if r.metrics != nil {
		r.metrics.RouteResponseTime.WithLabelValues(route, string(cache)).Set(d.Seconds())
	}
}

// CacheResult counts a cache hit or miss for route. Bypass is not counted.
func (r *RouteRecorder) CacheResult(route string, cache gateway.CacheStatus) {
	if r == nil || r.metrics == nil {
		return
	}
	switch cache {
	case gateway.CacheHit:
		r.metrics.CacheHits.WithLabelValues(route).Inc()
	case gateway.CacheMiss:
		r.metrics.CacheMisses.WithLabelValues(route).Inc()
	}
}
