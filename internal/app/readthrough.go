package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	gateway "github.com/eugener/meridian/internal"
	"github.com/eugener/meridian/internal/cache"
	"github.com/eugener/meridian/internal/telemetry"
)

// Result is a serialized response body and how it was served.
type Result struct {
	Body    []byte
	Cache   gateway.CacheStatus
	Latency time.Duration // upstream call on miss or bypass, cache read on hit
}

// ReadThrough implements cache-aside over a cache.Store: check, fetch on
// miss, write back. Backend failures degrade to a miss (Get) or a no-op (Set).
// A nil store disables caching; every call goes to fetch.
type ReadThrough struct {
	store    cache.Store
	ttl      time.Duration
	coalesce bool
	metrics  *telemetry.Metrics // nil = no error counting
	group    singleflight.Group
}

// ReadThroughConfig configures a ReadThrough.
type ReadThroughConfig struct {
	Store    cache.Store // nil = caching disabled
	TTL      time.Duration
	Coalesce bool // single-flight concurrent misses per key
	Metrics  *telemetry.Metrics
}

// NewReadThrough returns a ReadThrough for cfg.
func NewReadThrough(cfg ReadThroughConfig) *ReadThrough {
	return &ReadThrough{
		store:    cfg.Store,
		ttl:      cfg.TTL,
		coalesce: cfg.Coalesce,
		metrics:  cfg.Metrics,
	}
}

// Get returns the cached body for key, or calls fetch and caches its result.
// Fetch errors are returned as-is and never cached.
func (rt *ReadThrough) Get(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) (Result, error) {
	if rt.store == nil {
		start := time.Now()
		body, err := fetch(ctx)
		return Result{Body: body, Cache: gateway.CacheBypass, Latency: time.Since(start)}, err
	}

	start := time.Now()
	body, ok, err := rt.store.Get(ctx, key)
	if err != nil {
		rt.backendError(ctx, "get", key, err)
	} else if ok {
		return Result{Body: body, Cache: gateway.CacheHit, Latency: time.Since(start)}, nil
	}

	if !rt.coalesce {
		start = time.Now()
		body, err := fetch(ctx)
		latency := time.Since(start)
		if err != nil {
			return Result{Cache: gateway.CacheMiss, Latency: latency}, err
		}
		rt.set(ctx, key, body)
		return Result{Body: body, Cache: gateway.CacheMiss, Latency: latency}, nil
	}

	// The shared fetch outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	start = time.Now()
	v, err, _ := rt.group.Do(key, func() (any, error) {
		body, err := fetch(shared)
		if err != nil {
			return nil, err
		}
		rt.set(shared, key, body)
		return body, nil
	})
	latency := time.Since(start)
	if err != nil {
		return Result{Cache: gateway.CacheMiss, Latency: latency}, err
	}
	return Result{Body: v.([]byte), Cache: gateway.CacheMiss, Latency: latency}, nil
}

// Ping reports whether the cache backend is reachable. Disabled caching is always ready.
func (rt *ReadThrough) Ping(ctx context.Context) error {
	if rt.store == nil {
		return nil
	}
	return rt.store.Ping(ctx)
}

func (rt *ReadThrough) set(ctx context.Context, key string, body []byte) {
	if err := rt.store.Set(ctx, key, body, rt.ttl); err != nil {
		rt.backendError(ctx, "set", key, err)
	}
}

func (rt *ReadThrough) backendError(ctx context.Context, op, key string, err error) {
	if rt.metrics != nil {
		rt.metrics.CacheErrors.WithLabelValues(op).Inc()
	}
	slog.LogAttrs(ctx, slog.LevelWarn, "cache backend failure",
		slog.String("op", op),
		slog.String("key", key),
		slog.String("error", err.Error()),
		slog.String("request_id", gateway.RequestIDFromContext(ctx)),
	)
}
