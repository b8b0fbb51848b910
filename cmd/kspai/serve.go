package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kisahsukses/kspai/internal/auth"
	"github.com/kisahsukses/kspai/internal/config"
	"github.com/kisahsukses/kspai/internal/ratelimit"
	"github.com/kisahsukses/kspai/internal/server"
	"github.com/kisahsukses/kspai/internal/session"
	"github.com/kisahsukses/kspai/internal/telemetry"
	"github.com/kisahsukses/kspai/internal/worker"
)

func newServeCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP proxy boundary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// serve runs the HTTP boundary and background workers until ctx is done.
func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting kspai", "version", version, "addr", cfg.Server.Addr)

	if cfg.Telemetry.Tracing.Enabled {
		shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing.Endpoint, version, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				slog.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	var (
		metrics        *telemetry.Metrics
		metricsHandler http.Handler
	)
	if cfg.Telemetry.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = telemetry.NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	p, err := newPipeline(ctx, cfg, store, metrics)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return err
	}
	defer p.Close()

	secret := auth.NewSharedSecret(auth.Config{
		APIKey:    cfg.Auth.APIKey,
		BasicUser: cfg.Auth.BasicUser,
		BasicPass: cfg.Auth.BasicPass,
	})
	if secret.Open() {
		slog.Warn("no api_key or basic auth configured, boundary is open")
	}
	limiter := ratelimit.NewRegistry(ratelimit.Limits{
		Requests: cfg.RateLimits.Requests,
		Window:   cfg.RateLimits.Window,
	})

	deps := server.Deps{
		Auth:           secret,
		Resolver:       p.resolver,
		Streamer:       p.streamer,
		Cache:          p.cache,
		RateLimiter:    limiter,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	}
	if store != nil {
		deps.ReadyCheck = store.Ping
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.NewRunner(append(p.workers(), p.janitor(cfg, limiter))...).Run(gctx)
	})
	g.Go(func() error {
		slog.Info("kspai ready", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("kspai stopped")
	return nil
}

// janitor builds the housekeeping worker over whatever the pipeline has.
func (p *pipeline) janitor(cfg *config.Config, limiter *ratelimit.Registry) *worker.Janitor {
	deps := worker.JanitorDeps{
		KeepLast: session.MaxHistory,
		Limiters: limiter,
		Interval: cfg.Maintenance.Interval,
	}
	if p.store != nil {
		if cfg.Cache.Durable {
			deps.Cache = p.store
		}
		if cfg.Sessions.Persist {
			deps.Messages = p.store
		}
	}
	if p.dns != nil {
		deps.DNS = p.dns
	}
	return worker.NewJanitor(deps)
}
