package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"

	"github.com/eugener/meridian/internal/app"
	"github.com/eugener/meridian/internal/cache"
	"github.com/eugener/meridian/internal/circuitbreaker"
	"github.com/eugener/meridian/internal/config"
	"github.com/eugener/meridian/internal/ratelimit"
	"github.com/eugener/meridian/internal/server"
	"github.com/eugener/meridian/internal/storage"
	"github.com/eugener/meridian/internal/storage/sqlite"
	"github.com/eugener/meridian/internal/telemetry"
	"github.com/eugener/meridian/internal/upstream"
	"github.com/eugener/meridian/internal/upstream/dictionary"
	"github.com/eugener/meridian/internal/upstream/quotable"
	"github.com/eugener/meridian/internal/upstream/spacenews"
	"github.com/eugener/meridian/internal/worker"
)

const (
	dnsRefreshInterval = 5 * time.Minute
	evictInterval      = time.Minute
	evictIdle          = 10 * time.Minute
)

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	slog.Info("starting meridian", "version", version, "addr", cfg.Server.Addr(), "cache", cfg.Cache.Backend)

	// Tracing
	if cfg.Telemetry.Tracing.Enabled {
		shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate, version)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(flushCtx); err != nil {
				slog.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	// Metrics
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(promReg)

	runner := worker.NewRunner()

	// StatsD gauges. A collector that cannot be reached never fails a request.
	var gauges telemetry.Gauger
	if sc := cfg.Telemetry.Metrics.StatsD; sc.Enabled {
		client, err := telemetry.DialStatsD(sc.Addr(), sc.Prefix)
		if err != nil {
			slog.Warn("statsd disabled", "addr", sc.Addr(), "error", err)
		} else {
			emitter := telemetry.NewStatsD(client, metrics.GaugesDropped)
			runner.Add(emitter)
			gauges = emitter
		}
	}
	recorder := telemetry.NewRouteRecorder(metrics, gauges)

	// Upstreams
	resolver := &dnscache.Resolver{}
	runner.Add(worker.NewDNSRefresher(resolver, dnsRefreshInterval))
	transport := upstream.NewTransport(resolver)

	var breakers *circuitbreaker.Registry
	if cb := cfg.CircuitBreaker; cb.Enabled {
		breakers = circuitbreaker.NewRegistry(circuitbreaker.Config{
			ErrorThreshold: cb.ErrorThreshold,
			MinSamples:     cb.MinSamples,
			WindowSeconds:  cb.WindowSeconds,
			OpenTimeout:    cb.OpenTimeout,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				metrics.BreakerState.WithLabelValues(name).Set(float64(to))
				slog.Warn("circuit breaker state change", "upstream", name, "from", from, "to", to)
			},
		})
	}
	guard := upstream.NewGuard(cfg.Upstreams.Timeout, breakers, metrics)

	dict := dictionary.New(cfg.Upstreams.Dictionary.BaseURL, transport, guard)
	quotes := quotable.New(cfg.Upstreams.Quote.BaseURL, transport, guard)
	news := spacenews.New(cfg.Upstreams.News.BaseURL, transport, guard)

	// Cache
	store, expirer, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	if expirer != nil {
		runner.Add(worker.NewCacheSweeper(expirer, cfg.Cache.SweepInterval))
	}

	rt := app.NewReadThrough(app.ReadThroughConfig{
		Store:    store,
		TTL:      cfg.Cache.TTL,
		Coalesce: cfg.Cache.CoalesceMisses,
		Metrics:  metrics,
	})

	var limiter *ratelimit.Registry
	if cfg.RateLimit.RPM > 0 {
		limiter = ratelimit.NewRegistry(cfg.RateLimit.RPM)
	}

	evictTargets := map[string]worker.StaleEvicter{}
	if limiter != nil {
		evictTargets["ratelimit"] = limiter
	}
	if breakers != nil {
		evictTargets["circuitbreaker"] = breakers
	}
	runner.Add(worker.NewEvictor(evictInterval, evictIdle, evictTargets))

	// HTTP server
	deps := server.Deps{
		Dictionary:        app.NewDictionaryService(dict, rt, recorder),
		Quotes:            app.NewQuoteService(quotes, recorder),
		News:              app.NewNewsService(news, cfg.Upstreams.News.Limit, rt, recorder),
		Recorder:          recorder,
		ReadyCheck:        rt.Ping,
		RateLimiter:       limiter,
		Metrics:           metrics,
		NodeID:            cfg.Server.NodeID,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
	}
	if cfg.Telemetry.Metrics.Enabled {
		deps.MetricsHandler = promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           server.New(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	// Workers stop with the signal context; the server shuts down separately
	// so in-flight requests can drain.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	workerDone := make(chan error, 1)
	go func() { workerDone <- runner.Run(workerCtx) }()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("meridian ready", "addr", cfg.Server.Addr())

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	cancelWorkers()
	if err := <-workerDone; err != nil {
		slog.Error("workers stopped with error", "error", err)
	}

	if serveErr != nil {
		return serveErr
	}
	slog.Info("meridian stopped")
	return nil
}

// openCache builds the configured cache backend. The expirer is non-nil only
// for backends that need periodic sweeping. Backend "none" returns a nil store.
func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Store, storage.Expirer, error) {
	switch cfg.Backend {
	case "redis":
		r, err := cache.NewRedis(cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			// Cache outages degrade to misses, so an unreachable redis is not fatal.
			slog.Warn("redis unreachable at startup", "error", err)
		}
		return r, nil, nil
	case "memory":
		m, err := cache.NewMemory(cfg.MaxSize, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		return m, nil, nil
	case "sqlite":
		s, err := sqlite.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "none":
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
