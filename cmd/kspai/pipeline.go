package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rs/dnscache"

	kspai "github.com/kisahsukses/kspai/internal"
	"github.com/kisahsukses/kspai/internal/app"
	"github.com/kisahsukses/kspai/internal/cache"
	"github.com/kisahsukses/kspai/internal/circuitbreaker"
	"github.com/kisahsukses/kspai/internal/cloudauth"
	"github.com/kisahsukses/kspai/internal/config"
	"github.com/kisahsukses/kspai/internal/remote"
	"github.com/kisahsukses/kspai/internal/remote/openai"
	"github.com/kisahsukses/kspai/internal/remote/proxyclient"
	"github.com/kisahsukses/kspai/internal/session"
	"github.com/kisahsukses/kspai/internal/storage"
	"github.com/kisahsukses/kspai/internal/storage/sqlite"
	"github.com/kisahsukses/kspai/internal/telemetry"
	"github.com/kisahsukses/kspai/internal/worker"
)

// pipeline is the wired resolver stack shared by every command.
type pipeline struct {
	store    storage.Store // nil without durable storage
	cache    cache.Cache
	resolver *app.Resolver
	streamer *app.Streamer
	recorder *worker.MessageRecorder // nil unless sessions persist
	dns      *dnscache.Resolver      // nil unless the upstream caches lookups

	stop func() error
}

// openStore opens the configured database, or returns nil when none is set.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Database.Path == "" {
		return nil, nil
	}
	s, err := sqlite.New(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// newPipeline wires the cache, session memory, remote and resolver. store
// may be nil; metrics may be nil.
func newPipeline(ctx context.Context, cfg *config.Config, store storage.Store, metrics *telemetry.Metrics) (*pipeline, error) {
	p := &pipeline{store: store}

	mem, err := cache.NewMemory(cfg.Cache.MaxSize, max(cfg.Cache.TTL, cfg.Cache.FallbackTTL, kspai.DefaultTTL))
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	p.cache = mem
	if store != nil && cfg.Cache.Durable {
		p.cache = cache.NewTiered(mem, store)
	}

	var sessionOpts []session.Option
	if store != nil && cfg.Sessions.Persist {
		rc := worker.RecorderConfig{
			BufferSize:    cfg.Sessions.BufferSize,
			BatchSize:     cfg.Sessions.BatchSize,
			FlushInterval: cfg.Sessions.FlushInterval,
		}
		if metrics != nil {
			rc.QueueLength = metrics.JournalQueueLength
		}
		p.recorder = worker.NewMessageRecorder(store, rc)
		sessionOpts = append(sessionOpts, session.WithJournal(p.recorder))
	}
	sessions := session.NewStore(sessionOpts...)
	if store != nil && cfg.Sessions.Persist {
		msgs, err := store.LoadRecentMessages(ctx, session.MaxHistory)
		if err != nil {
			return nil, fmt.Errorf("restore sessions: %w", err)
		}
		sessions.Restore(msgs)
		slog.LogAttrs(ctx, slog.LevelDebug, "sessions restored", slog.Int("messages", len(msgs)))
	}

	rem, err := p.buildRemote(ctx, cfg.Upstream, metrics)
	if err != nil {
		return nil, err
	}
	if rem == nil {
		slog.LogAttrs(ctx, slog.LevelInfo, "no upstream configured, answering offline")
	}

	p.resolver = app.NewResolver(app.ResolverDeps{
		Cache:       p.cache,
		Sessions:    sessions,
		Remote:      rem,
		Metrics:     metrics,
		Timeout:     cfg.Upstream.Timeout,
		Strict:      !cfg.Upstream.FallbackOnErr,
		OfflineText: cfg.Upstream.OfflineText,
		AnswerTTL:   cfg.Cache.TTL,
		FallbackTTL: cfg.Cache.FallbackTTL,
	})
	p.streamer = app.NewStreamer(p.resolver, app.StreamConfig{
		ChunkSize: cfg.Streaming.ChunkSize,
		Pause:     cfg.Streaming.Pause,
	})
	return p, nil
}

// buildRemote returns the configured upstream, or nil when running offline.
func (p *pipeline) buildRemote(ctx context.Context, up config.UpstreamConfig, metrics *telemetry.Metrics) (kspai.Remote, error) {
	if !up.Configured() {
		return nil, nil
	}
	if up.DNSCache {
		p.dns = &dnscache.Resolver{}
	}
	transport := remote.NewTransport(p.dns, up.Timeout)

	var rem kspai.Remote
	switch up.Type {
	case "openai":
		rt, err := cloudauth.Wrap(ctx, up.Auth, up.APIKey, transport)
		if err != nil {
			return nil, fmt.Errorf("upstream auth: %w", err)
		}
		rem = openai.New(up.BaseURL, up.Model, &http.Client{Transport: rt})
	case "proxy":
		rem = proxyclient.New(up.BaseURL, up.APIKey, &http.Client{Transport: transport})
	default:
		return nil, fmt.Errorf("unknown upstream type %q", up.Type)
	}

	if !up.CircuitBreaker.Enabled {
		return rem, nil
	}
	bc := circuitbreaker.DefaultConfig()
	if v := up.CircuitBreaker.ErrorThreshold; v > 0 {
		bc.ErrorThreshold = v
	}
	if v := up.CircuitBreaker.MinSamples; v > 0 {
		bc.MinSamples = v
	}
	if v := up.CircuitBreaker.Window; v > 0 {
		bc.Window = v
	}
	if v := up.CircuitBreaker.OpenTimeout; v > 0 {
		bc.OpenTimeout = v
	}
	name := rem.Name()
	breaker := circuitbreaker.New(bc, circuitbreaker.OnStateChange(func(from, to circuitbreaker.State) {
		slog.Warn("circuit breaker state change",
			"remote", name,
			"from", from.String(),
			"to", to.String(),
		)
		if metrics != nil {
			metrics.BreakerState.Set(float64(to))
		}
	}))
	return remote.NewGuarded(rem, breaker), nil
}

// workers returns the background workers the pipeline itself needs.
func (p *pipeline) workers() []worker.Worker {
	if p.recorder == nil {
		return nil
	}
	return []worker.Worker{p.recorder}
}

// start runs the pipeline workers plus extra in the background until Close.
func (p *pipeline) start(extra ...worker.Worker) {
	ws := append(p.workers(), extra...)
	if len(ws) == 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.NewRunner(ws...).Run(ctx) }()
	p.stop = func() error {
		cancel()
		return <-done
	}
}

// Close stops background workers, flushing the session journal, then
// closes the store.
func (p *pipeline) Close() error {
	var errs []error
	if p.stop != nil {
		errs = append(errs, p.stop())
		p.stop = nil
	}
	if p.store != nil {
		errs = append(errs, p.store.Close())
	}
	return errors.Join(errs...)
}

// loadPipeline loads config and opens the store and pipeline for one-shot
// commands. Callers must Close the result.
func loadPipeline(ctx context.Context, configPath string) (*config.Config, *pipeline, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	p, err := newPipeline(ctx, cfg, store, nil)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, err
	}
	p.start()
	return cfg, p, nil
}
