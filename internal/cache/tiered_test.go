package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kspai "github.com/kisahsukses/kspai/internal"
)

type row struct {
	val       string
	expiresAt time.Time
}

// fakeBacking is a map-backed Backing that can be told to fail.
type fakeBacking struct {
	mu   sync.Mutex
	rows map[string]row
	fail bool
}

func newFakeBacking() *fakeBacking { return &fakeBacking{rows: make(map[string]row)} }

var errDisk = errors.New("disk full")

func (f *fakeBacking) GetCacheEntry(_ context.Context, key string) (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", time.Time{}, errDisk
	}
	r, ok := f.rows[key]
	if !ok {
		return "", time.Time{}, kspai.ErrNotFound
	}
	return r.val, r.expiresAt, nil
}

func (f *fakeBacking) PutCacheEntry(_ context.Context, key, val string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errDisk
	}
	f.rows[key] = row{val: val, expiresAt: expiresAt}
	return nil
}

func (f *fakeBacking) DeleteCacheEntry(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, key)
	return nil
}

func (f *fakeBacking) PurgeCache(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.rows)
	return nil
}

func (f *fakeBacking) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[key]
	return ok
}

func newTiered(t *testing.T, b Backing) *Tiered {
	t.Helper()
	m, err := NewMemory(100, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return NewTiered(m, b)
}

func TestTiered_WriteThroughAndPromote(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	backing := newFakeBacking()

	first := newTiered(t, backing)
	first.Set(ctx, "k", "v", time.Minute)
	if !backing.has("k") {
		t.Fatal("Set should write through to backing")
	}

	// A fresh process sees the durable row and promotes it.
	second := newTiered(t, backing)
	val, ok := second.Get(ctx, "k")
	if !ok || val != "v" {
		t.Fatalf("Get = %q, %v; want %q, true", val, ok, "v")
	}
	if v, ok := second.mem.Get(ctx, "k"); !ok || v != "v" {
		t.Error("value should be promoted into memory")
	}
}

func TestTiered_ExpiredRowPurgedOnRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	backing := newFakeBacking()
	backing.rows["old"] = row{val: "stale", expiresAt: time.Now().Add(-time.Second)}

	c := newTiered(t, backing)
	if _, ok := c.Get(ctx, "old"); ok {
		t.Error("expired durable row should be treated as absent")
	}
	if backing.has("old") {
		t.Error("expired durable row should be deleted lazily")
	}
}

func TestTiered_BackingFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	backing := newFakeBacking()
	backing.fail = true

	c := newTiered(t, backing)
	c.Set(ctx, "k", "v", time.Minute)
	if val, ok := c.Get(ctx, "k"); !ok || val != "v" {
		t.Errorf("memory tier should still serve after backing failure, got %q, %v", val, ok)
	}
	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("missing key should miss when backing fails")
	}
}

func TestTiered_DeleteAndPurge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	backing := newFakeBacking()
	c := newTiered(t, backing)

	c.Set(ctx, "a", "1", time.Minute)
	c.Set(ctx, "b", "2", time.Minute)

	c.Delete(ctx, "a")
	if _, ok := c.Get(ctx, "a"); ok || backing.has("a") {
		t.Error("Delete should clear both tiers")
	}

	c.Purge(ctx)
	if _, ok := c.Get(ctx, "b"); ok || backing.has("b") {
		t.Error("Purge should clear both tiers")
	}
}
