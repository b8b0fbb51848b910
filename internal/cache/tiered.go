package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kspai "github.com/kisahsukses/kspai/internal"
)

// Backing is durable storage mirroring the in-memory cache across restarts.
// Rows carry the same {value, expiresAt} shape as memory entries.
type Backing interface {
	GetCacheEntry(ctx context.Context, key string) (val string, expiresAt time.Time, err error)
	PutCacheEntry(ctx context.Context, key, val string, expiresAt time.Time) error
	DeleteCacheEntry(ctx context.Context, key string) error
	PurgeCache(ctx context.Context) error
}

// Tiered serves reads from Memory and falls back to a durable Backing,
// promoting unexpired rows into memory. Backing failures are logged and
// swallowed: the in-process cache keeps working without durability.
type Tiered struct {
	mem     *Memory
	backing Backing
}

// NewTiered layers mem over backing.
func NewTiered(mem *Memory, backing Backing) *Tiered {
	return &Tiered{mem: mem, backing: backing}
}

// Get returns an unexpired value from memory or the backing store.
func (t *Tiered) Get(ctx context.Context, key string) (string, bool) {
	if v, ok := t.mem.Get(ctx, key); ok {
		return v, true
	}

	val, expiresAt, err := t.backing.GetCacheEntry(ctx, key)
	if err != nil {
		if !errors.Is(err, kspai.ErrNotFound) {
			slog.LogAttrs(ctx, slog.LevelWarn, "durable cache read failed",
				slog.String("error", err.Error()),
			)
		}
		return "", false
	}
	if !t.mem.now().Before(expiresAt) {
		if err := t.backing.DeleteCacheEntry(ctx, key); err != nil {
			slog.LogAttrs(ctx, slog.LevelWarn, "durable cache purge failed",
				slog.String("error", err.Error()),
			)
		}
		return "", false
	}
	t.mem.setUntil(key, val, expiresAt)
	return val, true
}

// Set writes through to memory and, best-effort, to the backing store.
func (t *Tiered) Set(ctx context.Context, key, val string, ttl time.Duration) {
	expiresAt := t.mem.now().Add(ttl)
	t.mem.setUntil(key, val, expiresAt)
	if err := t.backing.PutCacheEntry(ctx, key, val, expiresAt); err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "durable cache write failed",
			slog.String("error", err.Error()),
		)
	}
}

// Delete removes key from both tiers.
func (t *Tiered) Delete(ctx context.Context, key string) {
	t.mem.Delete(ctx, key)
	if err := t.backing.DeleteCacheEntry(ctx, key); err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "durable cache delete failed",
			slog.String("error", err.Error()),
		)
	}
}

// Purge empties both tiers.
func (t *Tiered) Purge(ctx context.Context) {
	t.mem.Purge(ctx)
	if err := t.backing.PurgeCache(ctx); err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "durable cache purge failed",
			slog.String("error", err.Error()),
		)
	}
}
