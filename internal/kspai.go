// Package kspai defines domain types and interfaces for the Kisah Sukses Pro
// AI pipeline. This package has no project imports -- it is the dependency root.
package kspai

import (
	"context"
	"time"
)

// --- Conversation ---

// Role identifies the author of a session message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a session's history.
type Message struct {
	SessionID string    `json:"-"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	TS        time.Time `json:"ts"`
}

// Session is a point-in-time snapshot of a conversation, oldest message first.
type Session struct {
	ID      string    `json:"id"`
	History []Message `json:"history"`
}

// DefaultSessionID is used when the caller does not name a session.
const DefaultSessionID = "default"

// --- Asking ---

// Request defaults applied by WithDefaults.
const (
	DefaultMaxTokens   = 400
	DefaultTemperature = 0.6
	DefaultTTL         = 5 * time.Minute
	FallbackTTL        = time.Minute
)

// AskRequest is a single logical "ask" operation. It is transient and never persisted.
type AskRequest struct {
	Prompt       string        `json:"prompt"`
	SessionID    string        `json:"sessionId,omitempty"`
	MaxTokens    int           `json:"max_tokens,omitempty"`
	Temperature  *float64      `json:"temperature,omitempty"`
	ForceRefresh bool          `json:"force,omitempty"`
	CachePrefix  string        `json:"prefix,omitempty"`
	TTL          time.Duration `json:"-"` // remote answer TTL; 0 = DefaultTTL

	// History is the session's prior conversation, attached by the resolver
	// before a remote call. Remotes may use it as context.
	History []Message `json:"-"`
}

// WithDefaults returns a copy of r with defaults filled in and temperature
// clamped into [0, 1]. The receiver is not modified.
func (r *AskRequest) WithDefaults() *AskRequest {
	out := *r
	if out.SessionID == "" {
		out.SessionID = DefaultSessionID
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = DefaultMaxTokens
	}
	temp := DefaultTemperature
	if out.Temperature != nil {
		temp = min(1, max(0, *out.Temperature))
	}
	out.Temperature = &temp
	if out.TTL <= 0 {
		out.TTL = DefaultTTL
	}
	return &out
}

// TemperatureOrDefault returns the request temperature, or DefaultTemperature when unset.
func (r *AskRequest) TemperatureOrDefault() float64 {
	if r.Temperature == nil {
		return DefaultTemperature
	}
	return *r.Temperature
}

// Source reports which pipeline stage produced an answer.
type Source string

const (
	SourceCache  Source = "cache"
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Answer is the resolved response to an AskRequest.
type Answer struct {
	Text      string `json:"text"`
	Source    Source `json:"source"`
	SessionID string `json:"sessionId"`
}

// Local reports whether the answer came from the local rule engine.
func (a *Answer) Local() bool { return a.Source == SourceLocal }

// --- Remote capability ---

// Fragment is one incremental piece of streamed response text.
// A fragment with a non-nil Err is the last value sent on its channel.
type Fragment struct {
	Text string
	Err  error
}

// Remote is the externally hosted language-model capability.
type Remote interface {
	// Name returns the remote identifier (e.g. "openai", "proxy").
	Name() string
	// Complete sends a non-streaming request and returns the response text.
	Complete(ctx context.Context, req *AskRequest) (string, error)
	// Stream opens an incremental channel. The returned channel is closed when
	// the remote finishes. Remotes without streaming return ErrStreamUnsupported.
	Stream(ctx context.Context, req *AskRequest) (<-chan Fragment, error)
}

// --- Caller identity ---

// Identity is the authenticated caller attached to request context.
type Identity struct {
	Subject string `json:"subject"` // basic-auth user, "api_key" or "anonymous"
	Method  string `json:"method"`  // "api_key", "basic" or "open"
}

type contextKey int

const ctxKeyMeta contextKey = 0

// requestMeta bundles per-request values into a single context allocation.
// Identity is filled in later by the auth middleware via pointer mutation.
type requestMeta struct {
	RequestID string
	Identity  *Identity
}

func metaFromContext(ctx context.Context) *requestMeta {
	m, _ := ctx.Value(ctxKeyMeta).(*requestMeta)
	return m
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyMeta, &requestMeta{RequestID: id})
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if m := metaFromContext(ctx); m != nil {
		return m.RequestID
	}
	return ""
}

// ContextWithIdentity stores the identity in the existing requestMeta if present,
// otherwise it allocates new metadata (e.g. in tests).
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	if m := metaFromContext(ctx); m != nil {
		m.Identity = id
		return ctx
	}
	return context.WithValue(ctx, ctxKeyMeta, &requestMeta{Identity: id})
}

// IdentityFromContext extracts the authenticated identity from context.
func IdentityFromContext(ctx context.Context) *Identity {
	if m := metaFromContext(ctx); m != nil {
		return m.Identity
	}
	return nil
}
