package testutil

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/eugener/meridian/internal/cache"
)

// ErrCacheDown is returned by FakeCache when Down is set.
var ErrCacheDown = errors.New("fake cache down")

// FakeCache is an in-memory cache.Store that records writes and can be
// switched into a failing state.
type FakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	sets    int
	down    bool
}

var _ cache.Store = (*FakeCache)(nil)

// NewFakeCache returns an empty FakeCache.
func NewFakeCache() *FakeCache {
	return &FakeCache{
		entries: make(map[string][]byte),
		ttls:    make(map[string]time.Duration),
	}
}

// SetDown makes every operation fail with ErrCacheDown while down is true.
func (c *FakeCache) SetDown(down bool) {
	c.mu.Lock()
	c.down = down
	c.mu.Unlock()
}

// Get returns the stored value. Entries never expire.
func (c *FakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return nil, false, ErrCacheDown
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

// Set stores val and remembers ttl.
func (c *FakeCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return ErrCacheDown
	}
	c.entries[key] = val
	c.ttls[key] = ttl
	c.sets++
	return nil
}

// Ping fails while the cache is down.
func (c *FakeCache) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return ErrCacheDown
	}
	return nil
}

// Close is a no-op.
func (c *FakeCache) Close() error { return nil }

// TTL returns the ttl last written for key.
func (c *FakeCache) TTL(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttls[key]
}

// Sets returns the number of successful writes.
func (c *FakeCache) Sets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

// Keys returns the sorted stored keys.
func (c *FakeCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.entries))
}
