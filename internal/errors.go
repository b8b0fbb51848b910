package kspai

import "errors"

// Sentinel errors for the AI pipeline.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRateLimited       = errors.New("rate limited")
	ErrBadRequest        = errors.New("bad request")
	ErrNotFound          = errors.New("not found")
	ErrUpstreamRejected  = errors.New("upstream rejected request")
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrStreamUnsupported = errors.New("streaming not supported")
)
