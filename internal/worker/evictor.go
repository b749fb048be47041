package worker

import (
	"context"
	"log/slog"
	"time"
)

// StaleEvicter drops in-memory state not touched since cutoff.
type StaleEvicter interface {
	EvictStale(cutoff time.Time) int
}

// Evictor periodically trims idle per-client and per-upstream state
// (rate limiters, circuit breakers) so long-lived processes stay bounded.
type Evictor struct {
	targets  map[string]StaleEvicter
	interval time.Duration
	idle     time.Duration
}

// NewEvictor creates an Evictor that every interval evicts entries idle
// for longer than idle. Nil targets are ignored.
func NewEvictor(interval, idle time.Duration, targets map[string]StaleEvicter) *Evictor {
	live := make(map[string]StaleEvicter, len(targets))
	for name, t := range targets {
		if t != nil {
			live[name] = t
		}
	}
	return &Evictor{targets: live, interval: interval, idle: idle}
}

// Name returns the worker identifier.
func (e *Evictor) Name() string { return "stale_evictor" }

// Run evicts on a fixed schedule until ctx is cancelled.
func (e *Evictor) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			e.evict(ctx, now)
		}
	}
}

func (e *Evictor) evict(ctx context.Context, now time.Time) {
	cutoff := now.Add(-e.idle)
	for name, t := range e.targets {
		if n := t.EvictStale(cutoff); n > 0 {
			slog.LogAttrs(ctx, slog.LevelDebug, "evicted stale entries",
				slog.String("target", name),
				slog.Int("count", n),
			)
		}
	}
}
