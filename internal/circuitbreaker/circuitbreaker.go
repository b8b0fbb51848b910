// Package circuitbreaker guards the remote capability with a sliding-window
// error-rate breaker. While open, asks skip the remote entirely and go
// straight to the local fallback instead of waiting out a timeout.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows all requests through.
	StateClosed State = iota
	// StateOpen rejects all requests.
	StateOpen
	// StateHalfOpen allows a single probe request.
	StateHalfOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker parameters.
type Config struct {
	ErrorThreshold float64       // weighted error rate to trip (e.g. 0.5)
	MinSamples     int           // minimum requests before breaker can open
	Window         time.Duration // sliding window, whole seconds, max 60s
	OpenTimeout    time.Duration // time in OPEN before a probe is let through
}

// DefaultConfig returns defaults sized for a single personal-use remote.
func DefaultConfig() Config {
	return Config{
		ErrorThreshold: 0.5,
		MinSamples:     5,
		Window:         time.Minute,
		OpenTimeout:    30 * time.Second,
	}
}

type bucket struct {
	errors float64 // weighted error sum
	total  int
}

// window is a ring of 1-second buckets.
type window struct {
	buckets  [60]bucket
	size     int
	head     int
	headTime int64 // unix seconds of head bucket
}

func newWindow(d time.Duration) window {
	size := int(d / time.Second)
	if size <= 0 || size > 60 {
		size = 60
	}
	return window{size: size}
}

func (w *window) advance(nowSec int64) {
	if w.headTime == 0 {
		w.headTime = nowSec
		return
	}
	gap := nowSec - w.headTime
	if gap <= 0 {
		return
	}
	for i := range min(int(gap), w.size) {
		w.buckets[(w.head+1+i)%w.size] = bucket{}
	}
	w.head = (w.head + int(gap)) % w.size
	w.headTime = nowSec
}

func (w *window) record(weight float64, now time.Time) {
	w.advance(now.Unix())
	w.buckets[w.head].total++
	w.buckets[w.head].errors += weight
}

func (w *window) rate(now time.Time) (rate float64, samples int) {
	w.advance(now.Unix())
	var errs float64
	for i := range w.size {
		errs += w.buckets[i].errors
		samples += w.buckets[i].total
	}
	if samples == 0 {
		return 0, 0
	}
	return errs / float64(samples), samples
}

func (w *window) reset() {
	w.buckets = [60]bucket{}
	w.head = 0
	w.headTime = 0
}

// Breaker is the circuit breaker state machine.
type Breaker struct {
	mu       sync.Mutex
	cfg      Config
	state    State
	window   window
	openedAt time.Time
	probing  bool // a half-open probe is in flight

	now      func() time.Time
	onChange func(from, to State)
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// OnStateChange registers fn to be called, under the breaker lock, on every
// transition. fn must not call back into the breaker.
func OnStateChange(fn func(from, to State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

// New creates a closed breaker.
func New(cfg Config, opts ...Option) *Breaker {
	b := &Breaker{
		cfg:    cfg,
		window: newWindow(cfg.Window),
		now:    time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if b.onChange != nil && from != to {
		b.onChange(from, to)
	}
}

// Allow reports whether a request may proceed. In half-open state exactly
// one probe is admitted until its outcome is recorded or released.
func (b *Breaker) Allow() bool {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if now.Sub(b.openedAt) < b.cfg.OpenTimeout {
			return false
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// Record feeds the outcome of an admitted request into the window.
// Cancellation by the caller says nothing about the remote and only
// releases a pending probe.
func (b *Breaker) Record(err error) {
	if errors.Is(err, context.Canceled) {
		b.Release()
		return
	}
	weight := ClassifyError(err)
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.window.record(weight, now)

	switch b.state {
	case StateClosed:
		if weight == 0 {
			return
		}
		rate, samples := b.window.rate(now)
		if samples >= b.cfg.MinSamples && rate >= b.cfg.ErrorThreshold {
			b.openedAt = now
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.probing = false
		if weight == 0 {
			b.window.reset()
			b.transition(StateClosed)
			return
		}
		b.openedAt = now
		b.transition(StateOpen)
	}
}

// Release abandons an admitted request without an outcome, freeing the
// half-open probe slot.
func (b *Breaker) Release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}
