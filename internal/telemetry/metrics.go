// Package telemetry provides observability primitives for the Meridian gateway.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the gateway.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ActiveRequests    prometheus.Gauge
	RouteLatency      *prometheus.GaugeVec
	RouteResponseTime *prometheus.GaugeVec
	UpstreamDuration  *prometheus.HistogramVec
	UpstreamErrors    *prometheus.CounterVec
	CacheHits         *prometheus.CounterVec
	CacheMisses       *prometheus.CounterVec
	CacheErrors       *prometheus.CounterVec
	RateLimitRejects  prometheus.Counter
	BreakerState      *prometheus.GaugeVec
	GaugesDropped     prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meridian",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "meridian",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meridian",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		RouteLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "meridian",
			Name:      "route_latency_seconds",
			Help:      "Last observed upstream (or cache read on hit) latency per route.",
		}, []string{"route", "cache"}),

		RouteResponseTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "meridian",
			Name:      "route_response_time_seconds",
			Help:      "Last observed total handler time per route.",
		}, []string{"route", "cache"}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "meridian",
			Name:                            "upstream_duration_seconds",
			Help:                            "Upstream API call duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"upstream"}),

		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meridian",
			Name:      "upstream_errors_total",
			Help:      "Total upstream API errors.",
		}, []string{"upstream", "status"}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meridian",
			Name:      "cache_hits_total",
			Help:      "Total cache hits.",
		}, []string{"route"}),

		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meridian",
			Name:      "cache_misses_total",
			Help:      "Total cache misses.",
		}, []string{"route"}),

		CacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meridian",
			Name:      "cache_errors_total",
			Help:      "Total cache backend failures, by operation.",
		}, []string{"op"}),

		RateLimitRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meridian",
			Name:      "ratelimit_rejects_total",
			Help:      "Total rate limit rejections.",
		}),

		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "meridian",
			Name:      "upstream_breaker_state",
			Help:      "Circuit breaker state per upstream (0 closed, 1 open, 2 half-open).",
		}, []string{"upstream"}),

		GaugesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meridian",
			Name:      "statsd_gauges_dropped_total",
			Help:      "StatsD gauges dropped because the emitter queue was full.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.RouteLatency,
		m.RouteResponseTime,
		m.UpstreamDuration,
		m.UpstreamErrors,
		m.CacheHits,
		m.CacheMisses,
		m.CacheErrors,
		m.RateLimitRejects,
		m.BreakerState,
		m.GaugesDropped,
	)

	return m
}
