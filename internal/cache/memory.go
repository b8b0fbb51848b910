package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
)

// entry wraps a cached answer with its expiration time.
type entry struct {
	val       string
	expiresAt time.Time
}

// Memory is an in-process W-TinyLFU cache backed by otter. When maxSize is
// reached otter evicts by frequency/recency; maxTTL bounds how long any entry
// can occupy memory regardless of its own TTL.
type Memory struct {
	cache *otter.Cache[string, entry]
	now   func() time.Time
}

// NewMemory creates an in-memory cache holding at most maxSize entries.
func NewMemory(maxSize int, maxTTL time.Duration) (*Memory, error) {
	c, err := otter.New(&otter.Options[string, entry]{
		MaximumSize:      maxSize,
		ExpiryCalculator: otter.ExpiryWriting[string, entry](maxTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Memory{cache: c, now: time.Now}, nil
}

// Get returns the value for key if present and not expired.
// Expired entries are invalidated as a side effect.
func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	e, ok := m.cache.GetIfPresent(key)
	if !ok {
		return "", false
	}
	if !m.now().Before(e.expiresAt) {
		m.cache.Invalidate(key)
		return "", false
	}
	return e.val, true
}

// Set stores a value with a per-entry TTL.
func (m *Memory) Set(_ context.Context, key, val string, ttl time.Duration) {
	m.setUntil(key, val, m.now().Add(ttl))
}

func (m *Memory) setUntil(key, val string, expiresAt time.Time) {
	m.cache.Set(key, entry{val: val, expiresAt: expiresAt})
}

// Delete removes a value from the cache.
func (m *Memory) Delete(_ context.Context, key string) {
	m.cache.Invalidate(key)
}

// Purge removes all values from the cache.
func (m *Memory) Purge(_ context.Context) {
	m.cache.InvalidateAll()
}

// Len returns the number of entries currently held, expired or not.
func (m *Memory) Len() int {
	return m.cache.EstimatedSize()
}
