// Package storage defines persistence interfaces for the AI pipeline.
package storage

import (
	"context"
	"time"

	kspai "github.com/kisahsukses/kspai/internal"
)

// CacheStore is the durable mirror of the response cache.
type CacheStore interface {
	GetCacheEntry(ctx context.Context, key string) (val string, expiresAt time.Time, err error)
	PutCacheEntry(ctx context.Context, key, val string, expiresAt time.Time) error
	DeleteCacheEntry(ctx context.Context, key string) error
	PurgeCache(ctx context.Context) error
	DeleteExpiredCache(ctx context.Context, now time.Time) (int64, error)
}

// MessageStore persists session history.
type MessageStore interface {
	InsertMessages(ctx context.Context, msgs []kspai.Message) error
	DeleteSession(ctx context.Context, sessionID string) error
	// LoadRecentMessages returns up to perSession newest messages of every
	// session, each session oldest first.
	LoadRecentMessages(ctx context.Context, perSession int) ([]kspai.Message, error)
	// TrimMessages drops all but the newest keep messages of every session.
	TrimMessages(ctx context.Context, keep int) (int64, error)
}

// Store combines all storage interfaces.
type Store interface {
	CacheStore
	MessageStore
	Ping(ctx context.Context) error
	Close() error
}
