// Package server implements the HTTP transport layer for the Meridian gateway.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eugener/meridian/internal/app"
	"github.com/eugener/meridian/internal/ratelimit"
	"github.com/eugener/meridian/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Dictionary        *app.DictionaryService
	Quotes            *app.QuoteService
	News              *app.NewsService
	Recorder          *telemetry.RouteRecorder // nil = no per-route response time
	ReadyCheck        ReadyChecker             // nil = always ready (for tests)
	RateLimiter       *ratelimit.Registry      // nil = no rate limiting
	Metrics           *telemetry.Metrics       // nil = no request metrics
	MetricsHandler    http.Handler             // nil = /metrics not mounted
	NodeID            string                   // "" = no X-Node-Id header
	TrustProxyHeaders bool                     // take client IP from X-Forwarded-For / X-Real-IP
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware. recovery sits inside logging and metrics so a
	// recovered panic is still logged and counted as a 500.
	r.Use(s.requestID)
	if deps.NodeID != "" {
		r.Use(s.nodeID)
	}
	if deps.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}
	r.Use(s.recovery)

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	// System endpoints (never rate limited)
	r.Get("/ping", s.handlePing)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Upstream-backed API
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/dictionary", s.handleDictionary)
		r.Get("/quote", s.handleQuote)
		r.Get("/spaceflight_news", s.handleSpaceflightNews)
	})

	return r
}

type server struct {
	deps Deps
}
