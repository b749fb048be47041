// Package cache provides key-value backends for the gateway's cache-aside layer.
package cache

import (
	"context"
	"time"
)

// Store is a key-value backend with per-entry expiry.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent or expired.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	// Set stores val under key, overwriting any previous value, expiring after ttl.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// SpaceNewsKey caches the spaceflight headlines.
const SpaceNewsKey = "space-news"

// DictionaryKey returns the cache key for a dictionary lookup.
func DictionaryKey(word string) string {
	return "dictionary:" + word
}
