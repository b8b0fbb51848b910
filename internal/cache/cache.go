// Package cache provides the response cache for the AI pipeline.
package cache

import (
	"context"
	"time"
)

// Cache is a key->answer store with per-entry expiry.
type Cache interface {
	// Get returns the value only while it is unexpired.
	Get(ctx context.Context, key string) (string, bool)
	// Set overwrites any entry for key, expiring it after ttl.
	Set(ctx context.Context, key, val string, ttl time.Duration)
	// Delete removes a cached value.
	Delete(ctx context.Context, key string)
	// Purge removes all cached values.
	Purge(ctx context.Context)
}
