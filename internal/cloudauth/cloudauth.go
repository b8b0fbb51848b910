// Package cloudauth provides http.RoundTripper decorators that attach
// upstream credentials to outbound model requests.
package cloudauth

import (
	"context"
	"fmt"
	"net/http"
)

// Auth methods accepted by Wrap.
const (
	MethodAPIKey   = "api_key"
	MethodGCPOAuth = "gcp_oauth"
)

// GCPScope is the OAuth2 scope requested for Google-hosted endpoints.
const GCPScope = "https://www.googleapis.com/auth/cloud-platform"

// Wrap decorates base with the credential scheme named by method.
// For MethodAPIKey an empty key leaves base undecorated.
func Wrap(ctx context.Context, method, key string, base http.RoundTripper) (http.RoundTripper, error) {
	switch method {
	case "", MethodAPIKey:
		if key == "" {
			return base, nil
		}
		return &BearerTransport{Token: key, Base: base}, nil
	case MethodGCPOAuth:
		return NewGCPOAuthTransport(ctx, base, GCPScope)
	default:
		return nil, fmt.Errorf("cloudauth: unknown auth method %q", method)
	}
}

// BearerTransport sets "Authorization: Bearer <Token>" on every request.
type BearerTransport struct {
	Token string
	Base  http.RoundTripper
}

// RoundTrip clones the request and sets the auth header.
func (t *BearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r2 := r.Clone(r.Context())
	r2.Header.Set("Authorization", "Bearer "+t.Token)
	return baseOrDefault(t.Base).RoundTrip(r2)
}

func baseOrDefault(rt http.RoundTripper) http.RoundTripper {
	if rt != nil {
		return rt
	}
	return http.DefaultTransport
}
