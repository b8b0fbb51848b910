package remote

import (
	"context"
	"errors"
	"fmt"

	kspai "github.com/kisahsukses/kspai/internal"
	"github.com/kisahsukses/kspai/internal/circuitbreaker"
)

// Guarded wraps a Remote with a circuit breaker. While the breaker is open
// calls fail immediately with kspai.ErrRemoteUnavailable.
type Guarded struct {
	inner   kspai.Remote
	breaker *circuitbreaker.Breaker
}

var _ kspai.Remote = (*Guarded)(nil)

// NewGuarded wraps r with b.
func NewGuarded(r kspai.Remote, b *circuitbreaker.Breaker) *Guarded {
	return &Guarded{inner: r, breaker: b}
}

// Name returns the wrapped remote's name.
func (g *Guarded) Name() string { return g.inner.Name() }

// Breaker exposes the breaker for health reporting.
func (g *Guarded) Breaker() *circuitbreaker.Breaker { return g.breaker }

func (g *Guarded) unavailable() error {
	return fmt.Errorf("%s: circuit %s: %w", g.inner.Name(), g.breaker.State(), kspai.ErrRemoteUnavailable)
}

// Complete forwards to the wrapped remote and records the outcome.
func (g *Guarded) Complete(ctx context.Context, req *kspai.AskRequest) (string, error) {
	if !g.breaker.Allow() {
		return "", g.unavailable()
	}
	text, err := g.inner.Complete(ctx, req)
	g.breaker.Record(err)
	return text, err
}

// Stream forwards to the wrapped remote. The outcome is recorded when the
// stream ends: an error fragment counts as a failure, a clean close as success.
func (g *Guarded) Stream(ctx context.Context, req *kspai.AskRequest) (<-chan kspai.Fragment, error) {
	if !g.breaker.Allow() {
		return nil, g.unavailable()
	}
	in, err := g.inner.Stream(ctx, req)
	if err != nil {
		if errors.Is(err, kspai.ErrStreamUnsupported) {
			g.breaker.Release()
		} else {
			g.breaker.Record(err)
		}
		return nil, err
	}

	out := make(chan kspai.Fragment, cap(in))
	go func() {
		defer close(out)
		var streamErr error
		for f := range in {
			if f.Err != nil {
				streamErr = f.Err
			}
			select {
			case out <- f:
			case <-ctx.Done():
				g.breaker.Record(ctx.Err())
				// Drain so the producer can exit.
				for range in {
				}
				return
			}
		}
		g.breaker.Record(streamErr)
	}()
	return out, nil
}
