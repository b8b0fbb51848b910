package circuitbreaker

import (
	"context"
	"errors"
	"os"
)

type httpStatusError interface {
	HTTPStatus() int
}

// ClassifyError returns the breaker weight of a request outcome.
//
// Weights:
//   - nil -> 0.0
//   - timeout (deadline exceeded) -> 1.5
//   - 429 (rate limited) -> 0.5
//   - 5xx -> 1.0
//   - other 4xx -> 0.0 (caller fault, the remote answered)
//   - anything else (network, malformed payload) -> 1.0
func ClassifyError(err error) float64 {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return 1.5
	}
	var he httpStatusError
	if errors.As(err, &he) {
		return classifyStatus(he.HTTPStatus())
	}
	return 1.0
}

func classifyStatus(code int) float64 {
	switch {
	case code == 429:
		return 0.5
	case code >= 500:
		return 1.0
	default:
		return 0
	}
}
