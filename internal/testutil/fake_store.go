package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	kspai "github.com/kisahsukses/kspai/internal"
)

type cacheRow struct {
	val       string
	expiresAt time.Time
}

// FakeStore is an in-memory implementation of storage.Store for testing.
type FakeStore struct {
	mu       sync.Mutex
	cache    map[string]cacheRow
	messages []kspai.Message
	PingErr  error
}

// NewFakeStore returns a FakeStore with empty collections.
func NewFakeStore() *FakeStore {
	return &FakeStore{cache: make(map[string]cacheRow)}
}

// --- CacheStore ---

// GetCacheEntry returns a stored row or kspai.ErrNotFound.
func (s *FakeStore) GetCacheEntry(_ context.Context, key string) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.cache[key]
	if !ok {
		return "", time.Time{}, kspai.ErrNotFound
	}
	return r.val, r.expiresAt, nil
}

// PutCacheEntry stores a row.
func (s *FakeStore) PutCacheEntry(_ context.Context, key, val string, expiresAt time.Time) error {
	s.mu.Lock()
	s.cache[key] = cacheRow{val: val, expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

// DeleteCacheEntry removes a row.
func (s *FakeStore) DeleteCacheEntry(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return nil
}

// PurgeCache removes all rows.
func (s *FakeStore) PurgeCache(context.Context) error {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
	return nil
}

// DeleteExpiredCache removes rows expiring at or before now.
func (s *FakeStore) DeleteExpiredCache(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, r := range s.cache {
		if !now.Before(r.expiresAt) {
			delete(s.cache, k)
			n++
		}
	}
	return n, nil
}

// CacheLen returns the number of stored rows.
func (s *FakeStore) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// --- MessageStore ---

// InsertMessages appends messages.
func (s *FakeStore) InsertMessages(_ context.Context, msgs []kspai.Message) error {
	s.mu.Lock()
	s.messages = append(s.messages, msgs...)
	s.mu.Unlock()
	return nil
}

// DeleteSession drops a session's messages.
func (s *FakeStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	s.messages = slices.DeleteFunc(s.messages, func(m kspai.Message) bool { return m.SessionID == id })
	s.mu.Unlock()
	return nil
}

// LoadRecentMessages returns the newest perSession messages of each session.
func (s *FakeStore) LoadRecentMessages(_ context.Context, perSession int) ([]kspai.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return recent(s.messages, perSession), nil
}

// TrimMessages keeps the newest keep messages of each session.
func (s *FakeStore) TrimMessages(_ context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.messages)
	s.messages = recent(s.messages, keep)
	return int64(before - len(s.messages)), nil
}

// Messages returns a copy of all stored messages in insertion order.
func (s *FakeStore) Messages() []kspai.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

func recent(msgs []kspai.Message, per int) []kspai.Message {
	count := make(map[string]int)
	for _, m := range msgs {
		count[m.SessionID]++
	}
	seen := make(map[string]int)
	out := make([]kspai.Message, 0, len(msgs))
	for _, m := range msgs {
		seen[m.SessionID]++
		if count[m.SessionID]-seen[m.SessionID] < per {
			out = append(out, m)
		}
	}
	return out
}

// Ping returns PingErr.
func (s *FakeStore) Ping(context.Context) error { return s.PingErr }

// Close is a no-op.
func (s *FakeStore) Close() error { return nil }
