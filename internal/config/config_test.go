package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  addr: ":9090"
  read_timeout: 10s
database:
  path: ":memory:"
auth:
  api_key: rahasia
rate_limits:
  requests: 10
  window: 30s
upstream:
  type: openai
  api_key: sk-test
  model: gpt-4o
  timeout: 15s
  fallback_on_error: false
  circuit_breaker:
    enabled: false
streaming:
  chunk_size: 60
  pause: 60ms
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr != ":9090" || cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Database.Path != ":memory:" {
		t.Errorf("path = %q", cfg.Database.Path)
	}
	if cfg.Auth.APIKey != "rahasia" || cfg.Auth.Open() {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.RateLimits.Requests != 10 || cfg.RateLimits.Window != 30*time.Second {
		t.Errorf("rate limits = %+v", cfg.RateLimits)
	}
	up := cfg.Upstream
	if !up.Configured() || up.Model != "gpt-4o" || up.Timeout != 15*time.Second || up.FallbackOnErr {
		t.Errorf("upstream = %+v", up)
	}
	if up.CircuitBreaker.Enabled || up.CircuitBreaker.MinSamples != 5 {
		t.Errorf("circuit breaker = %+v, want disabled with default samples", up.CircuitBreaker)
	}
	if cfg.Streaming.ChunkSize != 60 || cfg.Streaming.Pause != 60*time.Millisecond {
		t.Errorf("streaming = %+v", cfg.Streaming)
	}
	// Untouched sections keep defaults.
	if cfg.Cache.TTL != 5*time.Minute || cfg.Upstream.OfflineText != DefaultOfflineText {
		t.Errorf("defaults lost: cache=%+v", cfg.Cache)
	}
}

func TestExpandEnv(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv
	t.Setenv("KSPAI_TEST_KEY", "sk-secret-123")

	path := writeConfig(t, `
upstream:
  type: openai
  api_key: ${KSPAI_TEST_KEY}
auth:
  api_key: ${KSPAI_TEST_UNSET_VAR}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Upstream.APIKey != "sk-secret-123" {
		t.Errorf("upstream key = %q", cfg.Upstream.APIKey)
	}
	if cfg.Auth.APIKey != "" || !cfg.Auth.Open() {
		t.Errorf("unset var should expand to empty, got %q", cfg.Auth.APIKey)
	}

	if got := string(expandEnv([]byte("key: ${KSPAI_TEST_KEY}"))); got != "key: sk-secret-123" {
		t.Errorf("expandEnv = %q", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"", writeConfig(t, `{}`)} {
		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Server.Addr != ":3000" {
			t.Errorf("default addr = %q", cfg.Server.Addr)
		}
		if cfg.Database.Path != "kspai.db" {
			t.Errorf("default path = %q", cfg.Database.Path)
		}
		if cfg.RateLimits.Requests != 60 || cfg.RateLimits.Window != time.Minute {
			t.Errorf("default rate limits = %+v", cfg.RateLimits)
		}
		if cfg.Upstream.Configured() {
			t.Error("default upstream should be offline")
		}
		if !cfg.Auth.Open() {
			t.Error("default auth should be open")
		}
	}
}

func TestUpstreamConfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		up   UpstreamConfig
		want bool
	}{
		{"offline", UpstreamConfig{}, false},
		{"openai without key", UpstreamConfig{Type: "openai", Auth: "api_key"}, false},
		{"openai with key", UpstreamConfig{Type: "openai", Auth: "api_key", APIKey: "k"}, true},
		{"openai gcp", UpstreamConfig{Type: "openai", Auth: "gcp_oauth"}, true},
		{"proxy", UpstreamConfig{Type: "proxy", BaseURL: "http://localhost:3000"}, true},
		{"proxy without url", UpstreamConfig{Type: "proxy"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.up.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad upstream type", "upstream:\n  type: gemini\n", "upstream.type"},
		{"bad auth", "upstream:\n  auth: sigv4\n", "upstream.auth"},
		{"zero window", "rate_limits:\n  window: 0s\n", "rate_limits.window"},
		{"user without pass", "auth:\n  basic_user: admin\n", "basic_pass"},
		{"sample rate", "telemetry:\n  tracing:\n    sample_rate: 2\n", "sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadSampleConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-sample")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("API_KEY", "shared")
	t.Setenv("BASIC_AUTH_USER", "")
	t.Setenv("BASIC_AUTH_PASS", "")

	cfg, err := Load(filepath.Join("..", "..", "configs", "kspai.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Upstream.Configured() {
		t.Error("sample upstream should be configured when OPENAI_API_KEY is set")
	}
	if cfg.Upstream.Model != "" {
		t.Errorf("model = %q, want empty", cfg.Upstream.Model)
	}
	if cfg.Auth.APIKey != "shared" || cfg.Auth.Open() {
		t.Errorf("auth = %+v, want api key only", cfg.Auth)
	}
	if cfg.Streaming.Pause != 40*time.Millisecond {
		t.Errorf("pause = %v, want 40ms", cfg.Streaming.Pause)
	}
	if cfg.Upstream.OfflineText != DefaultOfflineText {
		t.Error("offline text default lost when the key is absent from the file")
	}
}
