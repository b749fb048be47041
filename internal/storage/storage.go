// Package storage defines persistence interfaces for the gateway.
package storage

import (
	"context"
	"time"
)

// Expirer purges entries whose expiry has passed.
type Expirer interface {
	// DeleteExpired removes entries that expired at or before now and reports how many.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ExpiringStore persists cache entries with an absolute expiry.
type ExpiringStore interface {
	Expirer
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}
