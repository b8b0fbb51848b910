// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level kspai configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	RateLimits  RateLimitConfig   `yaml:"rate_limits"`
	Cache       CacheConfig       `yaml:"cache"`
	Sessions    SessionConfig     `yaml:"sessions"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	Streaming   StreamingConfig   `yaml:"streaming"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"` // 0 = unbounded, needed for long streams
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // file path, ":memory:", or "" to run without durable storage
}

// AuthConfig holds the shared-secret settings of the proxy boundary.
// With every field empty the boundary runs in open mode.
type AuthConfig struct {
	APIKey    string `yaml:"api_key"` // compared against X-Api-Key
	BasicUser string `yaml:"basic_user"`
	BasicPass string `yaml:"basic_pass"`
}

// Open reports whether no credential is configured.
func (a AuthConfig) Open() bool {
	return a.APIKey == "" && a.BasicUser == "" && a.BasicPass == ""
}

// RateLimitConfig bounds requests per client address.
type RateLimitConfig struct {
	Requests int64         `yaml:"requests"` // 0 = unlimited
	Window   time.Duration `yaml:"window"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	MaxSize     int           `yaml:"max_size"`
	TTL         time.Duration `yaml:"ttl"`          // remote answers
	FallbackTTL time.Duration `yaml:"fallback_ttl"` // local answers
	Durable     bool          `yaml:"durable"`      // mirror into the database
}

// SessionConfig controls session persistence.
type SessionConfig struct {
	Persist       bool          `yaml:"persist"`
	BufferSize    int           `yaml:"buffer_size"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// UpstreamConfig describes the hosted model the pipeline asks first.
type UpstreamConfig struct {
	Type           string               `yaml:"type"` // "openai", "proxy", or "" for offline
	BaseURL        string               `yaml:"base_url"`
	APIKey         string               `yaml:"api_key"`
	Model          string               `yaml:"model"`
	Auth           string               `yaml:"auth"` // "api_key" or "gcp_oauth"
	Timeout        time.Duration        `yaml:"timeout"`
	FallbackOnErr  bool                 `yaml:"fallback_on_error"`
	OfflineText    string               `yaml:"offline_text"`
	DNSCache       bool                 `yaml:"dns_cache"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// Configured reports whether a remote should be built. An openai upstream
// with api_key auth runs offline until a key is set.
func (u UpstreamConfig) Configured() bool {
	switch u.Type {
	case "openai":
		return u.Auth == "gcp_oauth" || u.APIKey != ""
	case "proxy":
		return u.BaseURL != ""
	default:
		return false
	}
}

// CircuitBreakerConfig tunes the breaker guarding the upstream.
type CircuitBreakerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ErrorThreshold float64       `yaml:"error_threshold"`
	MinSamples     int           `yaml:"min_samples"`
	Window         time.Duration `yaml:"window"`
	OpenTimeout    time.Duration `yaml:"open_timeout"`
}

// StreamingConfig tunes simulated streaming.
type StreamingConfig struct {
	ChunkSize int           `yaml:"chunk_size"`
	Pause     time.Duration `yaml:"pause"`
}

// MaintenanceConfig schedules the janitor.
type MaintenanceConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

// DefaultOfflineText is returned by the boundary when no upstream is
// configured and no rule matches.
const DefaultOfflineText = "AI offline: tidak ada API key terkonfigurasi. Hubungkan OPENAI_API_KEY pada environment untuk jawaban lebih komprehensif."

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3000",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Database: DatabaseConfig{
			Path: "kspai.db",
		},
		RateLimits: RateLimitConfig{
			Requests: 60,
			Window:   time.Minute,
		},
		Cache: CacheConfig{
			MaxSize:     10_000,
			TTL:         5 * time.Minute,
			FallbackTTL: time.Minute,
			Durable:     true,
		},
		Sessions: SessionConfig{
			Persist:       true,
			BufferSize:    1024,
			BatchSize:     64,
			FlushInterval: time.Second,
		},
		Upstream: UpstreamConfig{
			Auth:          "api_key",
			Timeout:       20 * time.Second,
			FallbackOnErr: true,
			OfflineText:   DefaultOfflineText,
			DNSCache:      true,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:        true,
				ErrorThreshold: 0.5,
				MinSamples:     5,
				Window:         time.Minute,
				OpenTimeout:    30 * time.Second,
			},
		},
		Streaming: StreamingConfig{
			ChunkSize: 80,
			Pause:     40 * time.Millisecond,
		},
		Maintenance: MaintenanceConfig{
			Interval: time.Minute,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: true},
		},
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
// Unset variables expand to the empty string so optional secrets can be
// left out of the environment.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		return []byte(os.Getenv(string(match[2 : len(match)-1])))
	})
}

// Load reads and parses a YAML config file, expanding environment variables.
// An empty path returns Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.RateLimits.Requests > 0 && c.RateLimits.Window <= 0 {
		errs = append(errs, errors.New("rate_limits.window must be positive"))
	}
	if c.Cache.MaxSize <= 0 {
		errs = append(errs, errors.New("cache.max_size must be positive"))
	}
	if c.Cache.TTL <= 0 || c.Cache.FallbackTTL <= 0 {
		errs = append(errs, errors.New("cache ttls must be positive"))
	}
	if c.Streaming.ChunkSize <= 0 {
		errs = append(errs, errors.New("streaming.chunk_size must be positive"))
	}
	switch c.Upstream.Type {
	case "", "openai", "proxy":
	default:
		errs = append(errs, fmt.Errorf("upstream.type %q: want openai, proxy or empty", c.Upstream.Type))
	}
	switch c.Upstream.Auth {
	case "api_key", "gcp_oauth":
	default:
		errs = append(errs, fmt.Errorf("upstream.auth %q: want api_key or gcp_oauth", c.Upstream.Auth))
	}
	if c.Auth.BasicUser != "" && c.Auth.BasicPass == "" {
		errs = append(errs, errors.New("auth.basic_pass required with auth.basic_user"))
	}
	if r := c.Telemetry.Tracing.SampleRate; r < 0 || r > 1 {
		errs = append(errs, errors.New("telemetry.tracing.sample_rate must be within [0, 1]"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
