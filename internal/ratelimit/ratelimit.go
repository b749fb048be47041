// Package ratelimit implements per-client request-per-minute limiting with
// lazy-refill token buckets.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed           bool
	Limit             int64
	Remaining         int64
	RetryAfterSeconds float64
}

// bucket is a token bucket with lazy refill (no background goroutine).
type bucket struct {
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastFill time.Time
}

func newBucket(perMinute int64, now time.Time) bucket {
	return bucket{
		tokens:   float64(perMinute),
		max:      float64(perMinute),
		rate:     float64(perMinute) / 60.0,
		lastFill: now,
	}
}

// refill adds tokens based on elapsed time since last refill.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.max, b.tokens+elapsed*b.rate)
	b.lastFill = now
}

// retryAfter returns seconds until one token is available.
func (b *bucket) retryAfter() float64 {
	if b.tokens >= 1 {
		return 0
	}
	return (1 - b.tokens) / b.rate
}

// Limiter is a single client's request bucket.
type Limiter struct {
	mu       sync.Mutex
	rpm      int64
	bucket   bucket
	lastUsed time.Time
}

func newLimiter(rpm int64) *Limiter {
	now := time.Now()
	return &Limiter{rpm: rpm, bucket: newBucket(rpm, now), lastUsed: now}
}

// Allow consumes one request token.
func (l *Limiter) Allow() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.lastUsed = now

	l.bucket.refill(now)
	if l.bucket.tokens >= 1 {
		l.bucket.tokens--
		return Result{Allowed: true, Limit: l.rpm, Remaining: int64(l.bucket.tokens)}
	}
	return Result{
		Allowed:           false,
		Limit:             l.rpm,
		RetryAfterSeconds: l.bucket.retryAfter(),
	}
}

// Registry holds one Limiter per client. A zero RPM disables limiting.
type Registry struct {
	mu       sync.RWMutex
	rpm      int64
	limiters map[string]*Limiter
}

// NewRegistry creates a registry limiting each client to rpm requests per minute.
func NewRegistry(rpm int64) *Registry {
	return &Registry{
		rpm:      rpm,
		limiters: make(map[string]*Limiter),
	}
}

// Allow consumes one token from client's bucket.
func (r *Registry) Allow(client string) Result {
	if r.rpm <= 0 {
		return Result{Allowed: true}
	}
	return r.getOrCreate(client).Allow()
}

func (r *Registry) getOrCreate(client string) *Limiter {
	r.mu.RLock()
	l, ok := r.limiters[client]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check after acquiring write lock.
	if l, ok := r.limiters[client]; ok {
		return l
	}
	l = newLimiter(r.rpm)
	r.limiters[client] = l
	return l
}

// Len returns the number of tracked clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}

// EvictStale removes limiters not used since cutoff.
func (r *Registry) EvictStale(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for k, l := range r.limiters {
		l.mu.Lock()
		stale := l.lastUsed.Before(cutoff)
		l.mu.Unlock()
		if stale {
			delete(r.limiters, k)
			evicted++
		}
	}
	return evicted
}
