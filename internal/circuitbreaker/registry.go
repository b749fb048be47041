package circuitbreaker

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Registry manages per-upstream Breaker instances.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	config   Config
}

// NewRegistry creates a new circuit breaker registry with the given config.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		config:   cfg,
	}
}

// Get returns the breaker for the given upstream, or nil if none exists.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b := r.breakers[name]
	r.mu.RUnlock()
	return b
}

// GetOrCreate returns the breaker for name, creating one if needed.
func (r *Registry) GetOrCreate(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b = NewBreaker(name, r.config)
	r.breakers[name] = b
	return b
}

// Names returns the sorted names of all tracked upstreams.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := slices.Sorted(maps.Keys(r.breakers))
	r.mu.RUnlock()
	return names
}

// EvictStale removes breakers not used since cutoff. Open breakers are kept
// so an idle but failing upstream is not silently reset.
func (r *Registry) EvictStale(cutoff time.Time) int {
	r.mu.RLock()
	var stale []string
	for k, b := range r.breakers {
		if b.LastUsed().Before(cutoff) && b.State() != StateOpen {
			stale = append(stale, k)
		}
	}
	r.mu.RUnlock()

	if len(stale) == 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for _, k := range stale {
		if b, ok := r.breakers[k]; ok && b.LastUsed().Before(cutoff) {
			delete(r.breakers, k)
			evicted++
		}
	}
	return evicted
}
