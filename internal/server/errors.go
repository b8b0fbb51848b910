package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	kspai "github.com/kisahsukses/kspai/internal"
)

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorResponse(status int, msg string) apiError {
	var e apiError
	e.Error.Message = msg
	e.Error.Type = errorType(status)
	return e
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound:
		return "invalid_request_error"
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return "upstream_error"
	default:
		return "server_error"
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, kspai.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, kspai.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, kspai.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, kspai.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, kspai.ErrUpstreamRejected):
		return http.StatusBadGateway
	case errors.Is(err, kspai.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and writes the JSON error body.
// Unexpected errors are logged and reported generically.
func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse(status, msg))
}

// jsonCT is a pre-allocated header value slice for direct map assignment.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
