// Package testutil provides configurable test fakes for kspai interfaces.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	kspai "github.com/kisahsukses/kspai/internal"
)

// FakeRemote is a configurable kspai.Remote for testing.
type FakeRemote struct {
	RemoteName string
	CompleteFn func(ctx context.Context, req *kspai.AskRequest) (string, error)
	StreamFn   func(ctx context.Context, req *kspai.AskRequest) (<-chan kspai.Fragment, error)

	completeCalls atomic.Int64
	streamCalls   atomic.Int64

	mu   sync.Mutex
	last *kspai.AskRequest
}

// Name returns the configured name, or "fake".
func (f *FakeRemote) Name() string {
	if f.RemoteName == "" {
		return "fake"
	}
	return f.RemoteName
}

// Complete delegates to CompleteFn or echoes the prompt.
func (f *FakeRemote) Complete(ctx context.Context, req *kspai.AskRequest) (string, error) {
	f.completeCalls.Add(1)
	f.remember(req)
	if f.CompleteFn != nil {
		return f.CompleteFn(ctx, req)
	}
	return "remote: " + req.Prompt, nil
}

// Stream delegates to StreamFn or reports streaming as unsupported.
func (f *FakeRemote) Stream(ctx context.Context, req *kspai.AskRequest) (<-chan kspai.Fragment, error) {
	f.streamCalls.Add(1)
	f.remember(req)
	if f.StreamFn != nil {
		return f.StreamFn(ctx, req)
	}
	return nil, kspai.ErrStreamUnsupported
}

// CompleteCalls returns how many times Complete was called.
func (f *FakeRemote) CompleteCalls() int { return int(f.completeCalls.Load()) }

// StreamCalls returns how many times Stream was called.
func (f *FakeRemote) StreamCalls() int { return int(f.streamCalls.Load()) }

// LastRequest returns the most recent request seen by the fake.
func (f *FakeRemote) LastRequest() *kspai.AskRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *FakeRemote) remember(req *kspai.AskRequest) {
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
}

// FragmentChan returns a closed channel pre-loaded with the given texts.
func FragmentChan(texts ...string) <-chan kspai.Fragment {
	ch := make(chan kspai.Fragment, len(texts))
	for _, t := range texts {
		ch <- kspai.Fragment{Text: t}
	}
	close(ch)
	return ch
}
