package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/eugener/meridian/internal/storage"
)

// CacheSweeper periodically deletes expired rows from a persistent cache.
type CacheSweeper struct {
	store    storage.Expirer
	interval time.Duration
}

// NewCacheSweeper creates a sweeper for store.
func NewCacheSweeper(store storage.Expirer, interval time.Duration) *CacheSweeper {
	return &CacheSweeper{store: store, interval: interval}
}

// Name returns the worker identifier.
func (s *CacheSweeper) Name() string { return "cache_sweeper" }

// Run sweeps on a fixed schedule until ctx is cancelled.
func (s *CacheSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.sweep(ctx, now)
		}
	}
}

func (s *CacheSweeper) sweep(ctx context.Context, now time.Time) {
	n, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "cache sweep failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if n > 0 {
		slog.LogAttrs(ctx, slog.LevelDebug, "cache swept",
			slog.Int64("deleted", n),
		)
	}
}
