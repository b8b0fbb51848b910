// Package remote contains shared plumbing for hosted language-model
// adapters: error parsing, payload text extraction, and a tuned transport.
package remote

import (
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-success response from a remote. The resolver treats it
// as a rejection: it falls back locally, or maps it to 502 in strict mode.
type APIError struct {
	Remote     string
	StatusCode int
	Body       string
}

// Error returns a formatted error string including remote, status, and body.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Remote, e.StatusCode, e.Body)
}

// HTTPStatus returns the upstream status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// ParseAPIError reads up to 4KB from the response body and returns an APIError.
func ParseAPIError(remote string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{Remote: remote, StatusCode: resp.StatusCode, Body: string(body)}
}
