package worker

import (
	"context"
	"log/slog"
	"time"
)

// DefaultJanitorInterval is used when JanitorDeps.Interval is zero.
const DefaultJanitorInterval = time.Minute

// ExpiredCachePurger drops durable cache rows past their expiry.
type ExpiredCachePurger interface {
	DeleteExpiredCache(ctx context.Context, now time.Time) (int64, error)
}

// MessageTrimmer caps persisted history per session.
type MessageTrimmer interface {
	TrimMessages(ctx context.Context, keep int) (int64, error)
}

// LimiterEvicter forgets clients idle since cutoff.
type LimiterEvicter interface {
	EvictStale(cutoff time.Time) int
}

// DNSRefresher re-resolves cached host names. Implemented by dnscache.Resolver.
type DNSRefresher interface {
	Refresh(clearUnused bool)
}

// JanitorDeps holds the janitor's targets. Nil fields are skipped.
type JanitorDeps struct {
	Cache    ExpiredCachePurger
	Messages MessageTrimmer
	KeepLast int // messages kept per session by Messages

	Limiters   LimiterEvicter
	LimiterTTL time.Duration // idle time before a client limiter is evicted

	DNS DNSRefresher

	Interval time.Duration
	Now      func() time.Time
}

// Janitor runs periodic housekeeping.
type Janitor struct {
	deps JanitorDeps
}

// NewJanitor creates a Janitor.
func NewJanitor(deps JanitorDeps) *Janitor {
	if deps.Interval <= 0 {
		deps.Interval = DefaultJanitorInterval
	}
	if deps.LimiterTTL <= 0 {
		deps.LimiterTTL = 10 * deps.Interval
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Janitor{deps: deps}
}

// Name returns the worker identifier.
func (j *Janitor) Name() string { return "janitor" }

// Run sweeps on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep performs one housekeeping pass. Failures are logged, never fatal.
func (j *Janitor) Sweep(ctx context.Context) {
	now := j.deps.Now()

	if j.deps.Cache != nil {
		n, err := j.deps.Cache.DeleteExpiredCache(ctx, now)
		j.report(ctx, "expired cache rows", n, err)
	}
	if j.deps.Messages != nil && j.deps.KeepLast > 0 {
		n, err := j.deps.Messages.TrimMessages(ctx, j.deps.KeepLast)
		j.report(ctx, "trimmed session messages", n, err)
	}
	if j.deps.Limiters != nil {
		n := j.deps.Limiters.EvictStale(now.Add(-j.deps.LimiterTTL))
		j.report(ctx, "evicted rate limiters", int64(n), nil)
	}
	if j.deps.DNS != nil {
		j.deps.DNS.Refresh(true)
	}
}

func (j *Janitor) report(ctx context.Context, what string, n int64, err error) {
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "janitor task failed",
			slog.String("task", what),
			slog.String("error", err.Error()),
		)
		return
	}
	if n > 0 {
		slog.LogAttrs(ctx, slog.LevelDebug, "janitor",
			slog.String("task", what),
			slog.Int64("count", n),
		)
	}
}
