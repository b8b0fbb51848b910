package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	kspai "github.com/kisahsukses/kspai/internal"
	"github.com/kisahsukses/kspai/internal/cache"
	"github.com/kisahsukses/kspai/internal/remote"
	"github.com/kisahsukses/kspai/internal/rules"
	"github.com/kisahsukses/kspai/internal/session"
	"github.com/kisahsukses/kspai/internal/testutil"
)

// ttlCache wraps Memory and remembers the TTL of the last write per key.
type ttlCache struct {
	*cache.Memory
	mu   sync.Mutex
	ttls map[string]time.Duration
}

func (c *ttlCache) Set(ctx context.Context, key, val string, ttl time.Duration) {
	c.mu.Lock()
	c.ttls[key] = ttl
	c.mu.Unlock()
	c.Memory.Set(ctx, key, val, ttl)
}

func (c *ttlCache) ttl(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttls[key]
}

type fixture struct {
	resolver *Resolver
	cache    *ttlCache
	sessions *session.Store
}

func newFixture(t *testing.T, deps ResolverDeps) *fixture {
	t.Helper()
	mem, err := cache.NewMemory(1000, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	c := &ttlCache{Memory: mem, ttls: make(map[string]time.Duration)}
	s := session.NewStore()
	deps.Cache = c
	deps.Sessions = s
	return &fixture{resolver: NewResolver(deps), cache: c, sessions: s}
}

func TestAsk_OfflineGreeting(t *testing.T) {
	t.Parallel()
	f := newFixture(t, ResolverDeps{})

	ans, err := f.resolver.Ask(context.Background(), &kspai.AskRequest{Prompt: "halo"})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != rules.ReplyGreeting || ans.Source != kspai.SourceLocal || !ans.Local() {
		t.Errorf("answer = %+v", ans)
	}
	if got := f.cache.ttl(cache.Fingerprint("", "halo", kspai.DefaultMaxTokens)); got != kspai.FallbackTTL {
		t.Errorf("cache ttl = %v, want %v", got, kspai.FallbackTTL)
	}

	h := f.sessions.History(kspai.DefaultSessionID)
	if len(h) != 2 || h[0].Role != kspai.RoleUser || h[0].Text != "halo" ||
		h[1].Role != kspai.RoleAssistant || h[1].Text != rules.ReplyGreeting {
		t.Errorf("history = %+v", h)
	}
}

func TestAsk_RemoteSuccess(t *testing.T) {
	t.Parallel()
	fake := &testutil.FakeRemote{}
	f := newFixture(t, ResolverDeps{Remote: fake})
	ctx := context.Background()

	f.sessions.Append("s1", kspai.RoleUser, "sebelumnya")
	ans, err := f.resolver.Ask(ctx, &kspai.AskRequest{Prompt: "apa kabar", SessionID: "s1", MaxTokens: 100})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != "remote: apa kabar" || ans.Source != kspai.SourceRemote || ans.SessionID != "s1" {
		t.Errorf("answer = %+v", ans)
	}
	if got := f.cache.ttl(cache.Fingerprint("", "apa kabar", 100)); got != kspai.DefaultTTL {
		t.Errorf("cache ttl = %v, want %v", got, kspai.DefaultTTL)
	}
	if last := fake.LastRequest(); len(last.History) != 1 || last.History[0].Text != "sebelumnya" {
		t.Errorf("remote saw history %+v", last.History)
	}
	if n := len(f.sessions.History("s1")); n != 3 {
		t.Errorf("history len = %d, want 3", n)
	}
}

func TestAsk_RemoteFailureFallsBack(t *testing.T) {
	t.Parallel()
	fake := &testutil.FakeRemote{
		CompleteFn: func(context.Context, *kspai.AskRequest) (string, error) {
			return "", &remote.APIError{Remote: "fake", StatusCode: 500, Body: "boom"}
		},
	}
	f := newFixture(t, ResolverDeps{Remote: fake})

	ans, err := f.resolver.Ask(context.Background(), &kspai.AskRequest{Prompt: "butuh motivasi"})
	if err != nil {
		t.Fatalf("remote error escaped: %v", err)
	}
	if ans.Text != rules.ReplyMotivation || ans.Source != kspai.SourceLocal {
		t.Errorf("answer = %+v", ans)
	}
	if got := f.cache.ttl(cache.Fingerprint("", "butuh motivasi", kspai.DefaultMaxTokens)); got != kspai.FallbackTTL {
		t.Errorf("cache ttl = %v, want %v", got, kspai.FallbackTTL)
	}
}

func TestAsk_CacheHitSkipsPipeline(t *testing.T) {
	t.Parallel()
	fake := &testutil.FakeRemote{}
	f := newFixture(t, ResolverDeps{Remote: fake})
	ctx := context.Background()
	req := &kspai.AskRequest{Prompt: "q", CachePrefix: "p", MaxTokens: 50}

	first, err := f.resolver.Ask(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.resolver.Ask(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if second.Text != first.Text || second.Source != kspai.SourceCache {
		t.Errorf("second = %+v, want cached %q", second, first.Text)
	}
	if fake.CompleteCalls() != 1 {
		t.Errorf("remote calls = %d, want 1", fake.CompleteCalls())
	}
	if n := len(f.sessions.History(kspai.DefaultSessionID)); n != 2 {
		t.Errorf("cache hit appended to session: len = %d", n)
	}

	// A different length parameter is a different fingerprint.
	if _, err := f.resolver.Ask(ctx, &kspai.AskRequest{Prompt: "q", CachePrefix: "p", MaxTokens: 51}); err != nil {
		t.Fatal(err)
	}
	if fake.CompleteCalls() != 2 {
		t.Errorf("remote calls = %d, want 2", fake.CompleteCalls())
	}
}

func TestAsk_ForceRefreshOverwrites(t *testing.T) {
	t.Parallel()
	var n int
	fake := &testutil.FakeRemote{
		CompleteFn: func(context.Context, *kspai.AskRequest) (string, error) {
			n++
			if n == 1 {
				return "v1", nil
			}
			return "v2", nil
		},
	}
	f := newFixture(t, ResolverDeps{Remote: fake})
	ctx := context.Background()

	if _, err := f.resolver.Ask(ctx, &kspai.AskRequest{Prompt: "q"}); err != nil {
		t.Fatal(err)
	}
	ans, err := f.resolver.Ask(ctx, &kspai.AskRequest{Prompt: "q", ForceRefresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != "v2" || ans.Source != kspai.SourceRemote {
		t.Errorf("forced answer = %+v", ans)
	}
	cached, ok := f.cache.Get(ctx, cache.Fingerprint("", "q", kspai.DefaultMaxTokens))
	if !ok || cached != "v2" {
		t.Errorf("cache = %q, %v; want overwritten v2", cached, ok)
	}
}

func TestAsk_RemoteTimeout(t *testing.T) {
	t.Parallel()
	fake := &testutil.FakeRemote{
		CompleteFn: func(ctx context.Context, _ *kspai.AskRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	f := newFixture(t, ResolverDeps{Remote: fake, Timeout: 10 * time.Millisecond})

	ans, err := f.resolver.Ask(context.Background(), &kspai.AskRequest{Prompt: "ada bug"})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != rules.ReplyCode || ans.Source != kspai.SourceLocal {
		t.Errorf("answer = %+v", ans)
	}
}

func TestAsk_CallerCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	fake := &testutil.FakeRemote{
		CompleteFn: func(ctx context.Context, _ *kspai.AskRequest) (string, error) {
			cancel()
			return "", ctx.Err()
		},
	}
	f := newFixture(t, ResolverDeps{Remote: fake})

	if _, err := f.resolver.Ask(ctx, &kspai.AskRequest{Prompt: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if n := len(f.sessions.History(kspai.DefaultSessionID)); n != 0 {
		t.Errorf("cancelled ask recorded %d messages", n)
	}
}

func TestAsk_Strict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"rejected", &remote.APIError{Remote: "fake", StatusCode: 401}, kspai.ErrUpstreamRejected},
		{"circuit open", kspai.ErrRemoteUnavailable, kspai.ErrRemoteUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fake := &testutil.FakeRemote{
				CompleteFn: func(context.Context, *kspai.AskRequest) (string, error) { return "", tt.err },
			}
			f := newFixture(t, ResolverDeps{Remote: fake, Strict: true})

			_, err := f.resolver.Ask(context.Background(), &kspai.AskRequest{Prompt: "halo"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("generic failure is not a rejection", func(t *testing.T) {
		t.Parallel()
		fake := &testutil.FakeRemote{
			CompleteFn: func(context.Context, *kspai.AskRequest) (string, error) { return "", errors.New("dial tcp: refused") },
		}
		f := newFixture(t, ResolverDeps{Remote: fake, Strict: true})

		_, err := f.resolver.Ask(context.Background(), &kspai.AskRequest{Prompt: "halo"})
		if err == nil || errors.Is(err, kspai.ErrUpstreamRejected) {
			t.Errorf("err = %v, want plain failure", err)
		}
	})
}

func TestAsk_OfflineText(t *testing.T) {
	t.Parallel()
	const offline = "AI offline"
	f := newFixture(t, ResolverDeps{OfflineText: offline})
	ctx := context.Background()

	ans, _ := f.resolver.Ask(ctx, &kspai.AskRequest{Prompt: "berapa harga emas"})
	if ans.Text != offline {
		t.Errorf("unmatched prompt = %q, want offline notice", ans.Text)
	}
	ans, _ = f.resolver.Ask(ctx, &kspai.AskRequest{Prompt: "halo"})
	if ans.Text != rules.ReplyGreeting {
		t.Errorf("matched prompt = %q, want greeting", ans.Text)
	}

	withRemote := newFixture(t, ResolverDeps{
		OfflineText: offline,
		Remote: &testutil.FakeRemote{CompleteFn: func(context.Context, *kspai.AskRequest) (string, error) {
			return "", errors.New("down")
		}},
	})
	ans, _ = withRemote.resolver.Ask(ctx, &kspai.AskRequest{Prompt: "berapa harga emas"})
	if ans.Text != rules.ReplyFallback {
		t.Errorf("remote-failure fallback = %q, want generic reply", ans.Text)
	}
}

func TestHelpers(t *testing.T) {
	t.Parallel()
	fake := &testutil.FakeRemote{}
	f := newFixture(t, ResolverDeps{Remote: fake})
	ctx := context.Background()

	tests := []struct {
		name   string
		call   func() (*kspai.Answer, error)
		prefix string
		lead   string
	}{
		{"summarize", func() (*kspai.Answer, error) {
			return f.resolver.Summarize(ctx, "teks panjang", kspai.AskRequest{SessionID: "h"})
		}, PrefixSummarize, summarizeTemplate},
		{"analyze", func() (*kspai.Answer, error) {
			return f.resolver.AnalyzeCode(ctx, "x := 1", kspai.AskRequest{SessionID: "h"})
		}, PrefixAnalyze, analyzeTemplate},
		{"motivate", func() (*kspai.Answer, error) {
			return f.resolver.SuggestMotivation(ctx, "ujian besok", kspai.AskRequest{SessionID: "h"})
		}, PrefixMotivate, motivationTemplate},
	}
	for _, tt := range tests {
		ans, err := tt.call()
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		last := fake.LastRequest()
		if last.CachePrefix != tt.prefix || last.Prompt[:len(tt.lead)] != tt.lead {
			t.Errorf("%s: request = %+v", tt.name, last)
		}
		if ans.Text != "remote: "+last.Prompt {
			t.Errorf("%s: answer = %q", tt.name, ans.Text)
		}
	}
}

func TestAsk_ConfiguredTTLs(t *testing.T) {
	t.Parallel()
	f := newFixture(t, ResolverDeps{
		Remote: &testutil.FakeRemote{CompleteFn: func(_ context.Context, req *kspai.AskRequest) (string, error) {
			if req.Prompt == "gagal" {
				return "", errors.New("down")
			}
			return "ok", nil
		}},
		AnswerTTL:   time.Hour,
		FallbackTTL: 2 * time.Minute,
	})
	ctx := context.Background()

	f.resolver.Ask(ctx, &kspai.AskRequest{Prompt: "sukses"})
	if got := f.cache.ttl(cache.Fingerprint("", "sukses", kspai.DefaultMaxTokens)); got != time.Hour {
		t.Errorf("remote ttl = %v, want 1h", got)
	}

	f.resolver.Ask(ctx, &kspai.AskRequest{Prompt: "eksplisit", TTL: time.Second})
	if got := f.cache.ttl(cache.Fingerprint("", "eksplisit", kspai.DefaultMaxTokens)); got != time.Second {
		t.Errorf("request ttl = %v, want 1s", got)
	}

	f.resolver.Ask(ctx, &kspai.AskRequest{Prompt: "gagal"})
	if got := f.cache.ttl(cache.Fingerprint("", "gagal", kspai.DefaultMaxTokens)); got != 2*time.Minute {
		t.Errorf("fallback ttl = %v, want 2m", got)
	}
}

// captureLogs routes the default logger into a buffer for the test. Callers
// must not be parallel.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestAsk_FailureLogMatchesOutcome(t *testing.T) {
	failing := func() *testutil.FakeRemote {
		return &testutil.FakeRemote{
			CompleteFn: func(context.Context, *kspai.AskRequest) (string, error) {
				return "", &remote.APIError{Remote: "fake", StatusCode: 500}
			},
		}
	}

	t.Run("fallback", func(t *testing.T) {
		logs := captureLogs(t)
		f := newFixture(t, ResolverDeps{Remote: failing()})
		if _, err := f.resolver.Ask(context.Background(), &kspai.AskRequest{Prompt: "halo"}); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(logs.String(), "using local fallback") {
			t.Errorf("log = %q, want fallback notice", logs.String())
		}
	})

	t.Run("strict", func(t *testing.T) {
		logs := captureLogs(t)
		f := newFixture(t, ResolverDeps{Remote: failing(), Strict: true})
		if _, err := f.resolver.Ask(context.Background(), &kspai.AskRequest{Prompt: "halo"}); err == nil {
			t.Fatal("expected strict failure")
		}
		out := logs.String()
		if !strings.Contains(out, "remote failed") || strings.Contains(out, "fallback") {
			t.Errorf("log = %q, want failure without fallback notice", out)
		}
	})
}
