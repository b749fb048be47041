// Package config handles YAML configuration loading with environment variable
// expansion and overrides.
package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"go.yaml.in/yaml/v3"
)

// Config is the top-level gateway configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Log            LogConfig            `yaml:"log"`
	Cache          CacheConfig          `yaml:"cache"`
	Upstreams      UpstreamsConfig      `yaml:"upstreams"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `yaml:"host" env:"HOST"`
	Port              int           `yaml:"port" env:"PORT" validate:"min=1,max=65535"`
	NodeID            string        `yaml:"node_id" env:"NODE_ID"` // echoed as X-Node-Id when set
	TrustProxyHeaders bool          `yaml:"trust_proxy_headers"`   // honor X-Forwarded-For / X-Real-IP
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LogConfig controls the default slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"LOG_FORMAT" validate:"oneof=json text"`
}

// CacheConfig holds cache-aside settings.
type CacheConfig struct {
	Backend        string        `yaml:"backend" env:"CACHE_BACKEND" validate:"oneof=redis memory sqlite none"`
	URL            string        `yaml:"url" env:"REDIS_URL" validate:"required_if=Backend redis"`
	TTL            time.Duration `yaml:"ttl" env:"CACHE_TTL" validate:"gt=0"`
	CoalesceMisses bool          `yaml:"coalesce_misses" env:"CACHE_COALESCE_MISSES"`
	MaxSize        int           `yaml:"max_size" validate:"gt=0"`       // memory backend only
	DSN            string        `yaml:"dsn" validate:"required_if=Backend sqlite"` // sqlite backend only
	SweepInterval  time.Duration `yaml:"sweep_interval" validate:"gt=0"` // sqlite backend only
}

// Enabled reports whether a cache backend is configured.
func (c CacheConfig) Enabled() bool {
	return c.Backend != "none"
}

// UpstreamsConfig holds the third-party API endpoints.
type UpstreamsConfig struct {
	Timeout    time.Duration `yaml:"timeout" env:"UPSTREAM_TIMEOUT" validate:"gte=0"` // 0 = no timeout
	Dictionary UpstreamEntry `yaml:"dictionary"`
	Quote      UpstreamEntry `yaml:"quote"`
	News       NewsEntry     `yaml:"news"`
}

// UpstreamEntry is a single upstream API definition.
type UpstreamEntry struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
}

// NewsEntry configures the spaceflight-news upstream.
type NewsEntry struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	Limit   int    `yaml:"limit" validate:"min=1"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	RPM int64 `yaml:"rpm" env:"RATE_LIMIT_RPM" validate:"gte=0"` // requests per minute per client (0 = unlimited)
}

// CircuitBreakerConfig controls the per-upstream circuit breaker.
type CircuitBreakerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ErrorThreshold float64       `yaml:"error_threshold" validate:"gt=0,lte=1"`
	MinSamples     int           `yaml:"min_samples" validate:"min=1"`
	WindowSeconds  int           `yaml:"window_seconds" validate:"min=1,max=60"`
	OpenTimeout    time.Duration `yaml:"open_timeout" validate:"gt=0"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus and StatsD metrics.
type MetricsConfig struct {
	Enabled bool         `yaml:"enabled"` // serve /metrics
	StatsD  StatsDConfig `yaml:"statsd"`
}

// StatsDConfig points the gauge emitter at a StatsD/graphite collector.
type StatsDConfig struct {
	Enabled bool   `yaml:"enabled" env:"STATSD_ENABLED"`
	Host    string `yaml:"host" env:"GRAPHITE_HOST" validate:"required_if=Enabled true"`
	Port    int    `yaml:"port" env:"GRAPHITE_PORT" validate:"min=1,max=65535"`
	Prefix  string `yaml:"prefix"`
}

// Addr returns the collector address in host:port form.
func (s StatsDConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint" validate:"required_if=Enabled true"` // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Default returns the configuration used when no file or variable overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			Backend:       "redis",
			URL:           "redis://redis:6379/0",
			TTL:           40 * time.Second,
			MaxSize:       10_000,
			DSN:           "meridian-cache.db",
			SweepInterval: time.Minute,
		},
		Upstreams: UpstreamsConfig{
			Timeout:    5 * time.Second,
			Dictionary: UpstreamEntry{BaseURL: "https://api.dictionaryapi.dev"},
			Quote:      UpstreamEntry{BaseURL: "https://api.quotable.io"},
			News:       NewsEntry{BaseURL: "https://api.spaceflightnewsapi.net", Limit: 5},
		},
		RateLimit: RateLimitConfig{
			RPM: 600,
		},
		CircuitBreaker: CircuitBreakerConfig{
			ErrorThreshold: 0.30,
			MinSamples:     10,
			WindowSeconds:  60,
			OpenTimeout:    30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				StatsD: StatsDConfig{
					Enabled: true,
					Host:    "graphite",
					Port:    8125,
				},
			},
			Tracing: TracingConfig{
				SampleRate: 1.0,
			},
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence, and validates it.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		data = expandEnv(data)
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
