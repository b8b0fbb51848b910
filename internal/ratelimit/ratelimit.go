// Package ratelimit implements per-client request limiting with lazy-refill token buckets.
package ratelimit

import (
	"sync"
	"time"
)

// Limits bounds a client to Requests per Window. Requests == 0 means unlimited.
type Limits struct {
	Requests int64
	Window   time.Duration
}

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

func newBucket(limits Limits, now time.Time) *bucket {
	return &bucket{
		tokens:   float64(limits.Requests),
		max:      float64(limits.Requests),
		rate:     float64(limits.Requests) / limits.Window.Seconds(),
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

// tryConsume attempts to consume one token.
func (b *bucket) tryConsume(now time.Time) (remaining int64, allowed bool) {
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return int64(b.tokens), true
	}
	return 0, false
}

// retryAfter returns seconds until one token is available.
func (b *bucket) retryAfter() float64 {
	if b.tokens >= 1 {
		return 0
	}
	return (1 - b.tokens) / b.rate
}

// Limiter is the bucket for a single client.
type Limiter struct {
	mu       sync.Mutex
	b        *bucket // nil if unlimited
	limits   Limits
	lastUsed time.Time
}

func newLimiter(limits Limits, now time.Time) *Limiter {
	l := &Limiter{limits: limits, lastUsed: now}
	if limits.Requests > 0 && limits.Window > 0 {
		l.b = newBucket(limits, now)
	}
	return l
}

func (l *Limiter) allow(now time.Time) Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastUsed = now

	if l.b == nil {
		return Result{Allowed: true}
	}
	if remaining, ok := l.b.tryConsume(now); ok {
		return Result{Allowed: true, Limit: l.limits.Requests, Remaining: remaining}
	}
	return Result{
		Allowed:           false,
		Limit:             l.limits.Requests,
		RetryAfterSeconds: l.b.retryAfter(),
	}
}

// Registry manages per-client Limiters sharing one Limits value.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	limits   Limits
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry applying limits to every client key.
func NewRegistry(limits Limits, opts ...Option) *Registry {
	r := &Registry{
		limiters: make(map[string]*Limiter),
		limits:   limits,
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Unlimited reports whether the registry never rejects.
func (r *Registry) Unlimited() bool {
	return r.limits.Requests <= 0 || r.limits.Window <= 0
}

// Allow consumes one request for key.
func (r *Registry) Allow(key string) Result {
	if r.Unlimited() {
		return Result{Allowed: true}
	}
	now := r.now()
	return r.getOrCreate(key, now).allow(now)
}

func (r *Registry) getOrCreate(key string, now time.Time) *Limiter {
	r.mu.RLock()
	l, ok := r.limiters[key]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check after acquiring write lock.
	if l, ok := r.limiters[key]; ok {
		return l
	}
	l = newLimiter(r.limits, now)
	r.limiters[key] = l
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
