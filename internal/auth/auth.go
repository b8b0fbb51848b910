// Package auth implements the shared-secret check of the proxy boundary.
// A request passes with a matching X-Api-Key header or matching HTTP Basic
// credentials. With no secret configured every request passes as anonymous.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	kspai "github.com/kisahsukses/kspai/internal"
)

// HeaderAPIKey is the request header carrying the shared key.
const HeaderAPIKey = "X-Api-Key"

// Config holds the accepted credentials. Empty fields disable that method.
type Config struct {
	APIKey    string
	BasicUser string
	BasicPass string
}

// SharedSecret authenticates requests against statically configured secrets.
type SharedSecret struct {
	apiKey    [sha256.Size]byte
	basicUser [sha256.Size]byte
	basicPass [sha256.Size]byte
	hasKey    bool
	hasBasic  bool
	open      bool
}

// NewSharedSecret returns an authenticator for cfg.
func NewSharedSecret(cfg Config) *SharedSecret {
	return &SharedSecret{
		apiKey:    sha256.Sum256([]byte(cfg.APIKey)),
		basicUser: sha256.Sum256([]byte(cfg.BasicUser)),
		basicPass: sha256.Sum256([]byte(cfg.BasicPass)),
		hasKey:    cfg.APIKey != "",
		hasBasic:  cfg.BasicUser != "" && cfg.BasicPass != "",
		open:      cfg.APIKey == "" && cfg.BasicUser == "" && cfg.BasicPass == "",
	}
}

// Open reports whether no credential is configured. A half-configured basic
// pair is not open; it rejects every basic-auth attempt.
func (a *SharedSecret) Open() bool { return a.open }

// Authenticate returns the caller's Identity or kspai.ErrUnauthorized.
func (a *SharedSecret) Authenticate(_ context.Context, r *http.Request) (*kspai.Identity, error) {
	if a.Open() {
		return &kspai.Identity{Subject: "anonymous", Method: "open"}, nil
	}

	if a.hasKey {
		if key := r.Header.Get(HeaderAPIKey); key != "" && equal(a.apiKey, key) {
			return &kspai.Identity{Subject: "api_key", Method: "api_key"}, nil
		}
	}

	if a.hasBasic {
		user, pass, ok := r.BasicAuth()
		// Evaluate both comparisons so timing does not reveal which half failed.
		userOK, passOK := equal(a.basicUser, user), equal(a.basicPass, pass)
		if ok && userOK && passOK {
			return &kspai.Identity{Subject: user, Method: "basic"}, nil
		}
	}

	return nil, kspai.ErrUnauthorized
}

// equal compares fixed-size digests so the comparison time does not depend
// on the length of either input.
func equal(want [sha256.Size]byte, got string) bool {
	sum := sha256.Sum256([]byte(got))
	return subtle.ConstantTimeCompare(want[:], sum[:]) == 1
}
