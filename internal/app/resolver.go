// Package app holds the application services of the AI pipeline: the
// request resolver and the streaming adapter built on top of it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	kspai "github.com/kisahsukses/kspai/internal"
	"github.com/kisahsukses/kspai/internal/cache"
	"github.com/kisahsukses/kspai/internal/remote"
	"github.com/kisahsukses/kspai/internal/rules"
	"github.com/kisahsukses/kspai/internal/session"
	"github.com/kisahsukses/kspai/internal/telemetry"
)

// DefaultRemoteTimeout bounds a single non-streaming remote call.
const DefaultRemoteTimeout = 20 * time.Second

var tracer = telemetry.Tracer("github.com/kisahsukses/kspai/internal/app")

// ResolverDeps wires a Resolver. Optional fields may be left zero.
type ResolverDeps struct {
	Cache    cache.Cache
	Sessions *session.Store
	Rules    *rules.Engine

	Remote      kspai.Remote       // nil = offline, every ask resolves locally
	Metrics     *telemetry.Metrics // nil = no metrics
	Timeout     time.Duration      // 0 = DefaultRemoteTimeout
	Strict      bool               // surface remote failures instead of falling back
	OfflineText string             // reply when offline and no specific rule fires

	AnswerTTL   time.Duration // remote answers when the request sets none; 0 = kspai.DefaultTTL
	FallbackTTL time.Duration // local answers; 0 = kspai.FallbackTTL
}

// Resolver answers a single ask: cache, then remote, then local rules.
type Resolver struct {
	cache       cache.Cache
	sessions    *session.Store
	rules       *rules.Engine
	remote      kspai.Remote
	metrics     *telemetry.Metrics
	timeout     time.Duration
	strict      bool
	offlineText string
	answerTTL   time.Duration
	fallbackTTL time.Duration
}

// NewResolver returns a Resolver wired to deps.
func NewResolver(deps ResolverDeps) *Resolver {
	if deps.Rules == nil {
		deps.Rules = rules.New()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultRemoteTimeout
	}
	if deps.FallbackTTL <= 0 {
		deps.FallbackTTL = kspai.FallbackTTL
	}
	return &Resolver{
		cache:       deps.Cache,
		sessions:    deps.Sessions,
		rules:       deps.Rules,
		remote:      deps.Remote,
		metrics:     deps.Metrics,
		timeout:     deps.Timeout,
		strict:      deps.Strict,
		offlineText: deps.OfflineText,
		answerTTL:   deps.AnswerTTL,
		fallbackTTL: deps.FallbackTTL,
	}
}

// HasRemote reports whether a remote capability is configured.
func (r *Resolver) HasRemote() bool { return r.remote != nil }

// Sessions returns the session store the resolver records into.
func (r *Resolver) Sessions() *session.Store { return r.sessions }

// Ask resolves req. Remote failures are logged and answered locally; in
// strict mode they are returned instead, wrapped in kspai.ErrUpstreamRejected
// when the remote answered with an error status.
func (r *Resolver) Ask(ctx context.Context, req *kspai.AskRequest) (*kspai.Answer, error) {
	req = r.prepare(req)
	ctx, span := tracer.Start(ctx, "resolver.Ask", trace.WithAttributes(
		attribute.String("session.id", req.SessionID),
		attribute.Bool("force_refresh", req.ForceRefresh),
	))
	defer span.End()

	key := cache.Fingerprint(req.CachePrefix, req.Prompt, req.MaxTokens)
	if !req.ForceRefresh {
		if text, ok := r.cache.Get(ctx, key); ok {
			r.countCache(true)
			return r.answer(span, text, kspai.SourceCache, req), nil
		}
	}
	r.countCache(false)

	if r.remote != nil {
		text, err := r.complete(ctx, req)
		if err == nil {
			r.cache.Set(ctx, key, text, req.TTL)
			r.record(req.SessionID, req.Prompt, text)
			return r.answer(span, text, kspai.SourceRemote, req), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, "cancelled")
			return nil, ctxErr
		}
		r.remoteFailed(ctx, "complete", err, !r.strict)
		if r.strict {
			span.RecordError(err)
			span.SetStatus(codes.Error, "remote failed")
			return nil, strictError(err)
		}
	}

	text := r.localReply(req.Prompt)
	r.cache.Set(ctx, key, text, r.fallbackTTL)
	r.record(req.SessionID, req.Prompt, text)
	return r.answer(span, text, kspai.SourceLocal, req), nil
}

// prepare applies the configured answer TTL and request defaults.
func (r *Resolver) prepare(req *kspai.AskRequest) *kspai.AskRequest {
	if req.TTL <= 0 && r.answerTTL > 0 {
		withTTL := *req
		withTTL.TTL = r.answerTTL
		req = &withTTL
	}
	return req.WithDefaults()
}

// complete performs the single bounded remote call of an ask.
func (r *Resolver) complete(ctx context.Context, req *kspai.AskRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	text, err := r.remote.Complete(ctx, r.withHistory(req))
	if r.metrics != nil {
		r.metrics.RemoteDuration.WithLabelValues(r.remote.Name(), "complete").Observe(time.Since(start).Seconds())
	}
	return text, err
}

// withHistory returns a copy of req carrying the session's prior messages.
func (r *Resolver) withHistory(req *kspai.AskRequest) *kspai.AskRequest {
	out := *req
	out.History = r.sessions.History(req.SessionID)
	return &out
}

// localReply answers from the rule table. Without a remote, a configured
// offline notice replaces the generic fallback.
func (r *Resolver) localReply(prompt string) string {
	if r.remote == nil && r.offlineText != "" {
		if reply, ok := r.rules.Match(prompt); ok {
			return reply
		}
		return r.offlineText
	}
	return r.rules.Respond(prompt)
}

func (r *Resolver) record(sessionID, prompt, reply string) {
	r.sessions.Append(sessionID, kspai.RoleUser, prompt)
	r.sessions.Append(sessionID, kspai.RoleAssistant, reply)
}

func (r *Resolver) answer(span trace.Span, text string, src kspai.Source, req *kspai.AskRequest) *kspai.Answer {
	span.SetAttributes(attribute.String("answer.source", string(src)))
	if r.metrics != nil {
		r.metrics.Answers.WithLabelValues(string(src)).Inc()
	}
	return &kspai.Answer{Text: text, Source: src, SessionID: req.SessionID}
}

func (r *Resolver) countCache(hit bool) {
	if r.metrics == nil {
		return
	}
	if hit {
		r.metrics.CacheHits.Inc()
	} else {
		r.metrics.CacheMisses.Inc()
	}
}

// remoteFailed logs and counts a remote failure. recovered reports whether
// the caller will still be answered locally.
func (r *Resolver) remoteFailed(ctx context.Context, mode string, err error, recovered bool) {
	status := remoteStatus(err)
	msg := "remote failed"
	if recovered {
		msg = "remote failed, using local fallback"
	}
	slog.LogAttrs(ctx, slog.LevelWarn, msg,
		slog.String("remote", r.remote.Name()),
		slog.String("mode", mode),
		slog.String("status", status),
		slog.String("error", err.Error()),
		slog.String("request_id", kspai.RequestIDFromContext(ctx)),
	)
	if r.metrics != nil {
		r.metrics.RemoteErrors.WithLabelValues(r.remote.Name(), status).Inc()
	}
}

func remoteStatus(err error) string {
	var apiErr *remote.APIError
	switch {
	case errors.As(err, &apiErr):
		return strconv.Itoa(apiErr.StatusCode)
	case errors.Is(err, kspai.ErrRemoteUnavailable):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, kspai.ErrStreamUnsupported):
		return "unsupported"
	default:
		return "error"
	}
}

func strictError(err error) error {
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", kspai.ErrUpstreamRejected, err)
	}
	return fmt.Errorf("remote: %w", err)
}
