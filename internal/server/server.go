// Package server implements the HTTP boundary of the kspai pipeline.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	kspai "github.com/kisahsukses/kspai/internal"
	"github.com/kisahsukses/kspai/internal/app"
	"github.com/kisahsukses/kspai/internal/cache"
	"github.com/kisahsukses/kspai/internal/ratelimit"
	"github.com/kisahsukses/kspai/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Authenticator resolves the caller of a request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (*kspai.Identity, error)
}

// DefaultMaxBodyBytes caps request bodies when Deps.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 1 << 20

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Auth     Authenticator
	Resolver *app.Resolver
	Streamer *app.Streamer
	Cache    cache.Cache // purged by DELETE /api/cache

	ReadyCheck     ReadyChecker        // nil = always ready (for tests)
	RateLimiter    *ratelimit.Registry // nil = no rate limiting
	Metrics        *telemetry.Metrics  // nil = no metrics middleware
	MetricsHandler http.Handler        // nil = no /metrics endpoint
	MaxBodyBytes   int64
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}
	r.Use(s.logging)

	// System endpoints (no auth, no rate limit)
	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Use(s.authenticate)

		r.Post("/ai", s.handleAsk)
		r.Post("/ai/stream", s.handleAskStream)
		r.Post("/ai/summarize", s.handleHelper(app.PrefixSummarize))
		r.Post("/ai/analyze", s.handleHelper(app.PrefixAnalyze))
		r.Post("/ai/motivate", s.handleHelper(app.PrefixMotivate))

		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Delete("/cache", s.handlePurgeCache)
	})

	return r
}

type server struct {
	deps Deps
}
