// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pkkmi/andikar-gate/domain/tier"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Humanizer HumanizerConfig `yaml:"humanizer"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Tiers     []TierConfig    `yaml:"tiers"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// HumanizerConfig configures the upstream humanizer service.
type HumanizerConfig struct {
	URL             string        `yaml:"url"`
	Path            string        `yaml:"path"`
	APIKey          string        `yaml:"api_key,omitempty"`
	Timeout         time.Duration `yaml:"timeout"`
	LongInputWords  int           `yaml:"long_input_words"`
	MaxRetries      int           `yaml:"max_retries"`
	BackoffInitial  time.Duration `yaml:"backoff_initial"`
	Formats         []string      `yaml:"formats,omitempty"`
	ResultKeys      []string      `yaml:"result_keys,omitempty"`
	FallbackEnabled *bool         `yaml:"fallback_enabled,omitempty"`
	UserAgent       string        `yaml:"user_agent,omitempty"`
}

// FallbackOn reports whether the local fallback is enabled. Defaults to
// true when unset.
func (h HumanizerConfig) FallbackOn() bool {
	return h.FallbackEnabled == nil || *h.FallbackEnabled
}

// RateLimitConfig configures per-user call-frequency limiting.
type RateLimitConfig struct {
	Enabled     bool   `yaml:"enabled"`
	WindowSecs  int    `yaml:"window_secs"`
	BurstTokens int    `yaml:"burst_tokens"`
	Store       string `yaml:"store"` // "memory" or "redis"
}

// Window returns the limit window as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSecs) * time.Second
}

// DatabaseConfig configures persistent storage.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "memory" or "sqlite"
	DSN    string `yaml:"dsn"`
}

// RedisConfig configures the optional Redis backend for rate limiting.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// TierConfig configures one subscription tier.
type TierConfig struct {
	Name              string   `yaml:"name"`
	WordLimit         int      `yaml:"word_limit"`
	DailyWordLimit    int      `yaml:"daily_word_limit"`
	MonthlyWordLimit  int      `yaml:"monthly_word_limit"`
	PriceCents        int64    `yaml:"price_cents"`
	MaxCallsPerWindow int      `yaml:"max_calls_per_window"`
	Features          []string `yaml:"features,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // default: /metrics
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	ANDIKAR_HUMANIZER_URL     - Upstream humanizer URL (required)
//	ANDIKAR_DATABASE_DRIVER   - Storage driver: memory or sqlite (default: memory)
//	ANDIKAR_DATABASE_DSN      - Database path (default: andikar.db)
//	ANDIKAR_SERVER_HOST       - Server host (default: 0.0.0.0)
//	ANDIKAR_SERVER_PORT       - Server port (default: 8080)
//	ANDIKAR_RATELIMIT_ENABLED - Enable rate limiting (default: true)
//	ANDIKAR_RATELIMIT_STORE   - Rate limit store: memory or redis (default: memory)
//	ANDIKAR_REDIS_ADDR        - Redis address for the redis store
//	ANDIKAR_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	ANDIKAR_LOG_FORMAT        - Log format: json or console (default: json)
//	ANDIKAR_METRICS_ENABLED   - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables. This is the recommended method for Docker deployments.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if os.Getenv("ANDIKAR_HUMANIZER_URL") != "" {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set ANDIKAR_HUMANIZER_URL")
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("ANDIKAR_HUMANIZER_URL") != ""
}

// Catalog builds a tier catalog from the configured tiers. The cheapest
// tier becomes the fail-open default.
func (c *Config) Catalog() *tier.Catalog {
	if len(c.Tiers) == 0 {
		return tier.NewCatalog(tier.Defaults(), "")
	}
	tiers := make([]tier.Tier, 0, len(c.Tiers))
	for _, t := range c.Tiers {
		tiers = append(tiers, tier.Tier{
			Name:              t.Name,
			WordLimit:         t.WordLimit,
			DailyWordLimit:    t.DailyWordLimit,
			MonthlyWordLimit:  t.MonthlyWordLimit,
			PriceCents:        t.PriceCents,
			MaxCallsPerWindow: t.MaxCallsPerWindow,
			Features:          t.Features,
		})
	}
	return tier.NewCatalog(tiers, "")
}

// applyEnvOverrides applies ANDIKAR_* environment variables.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANDIKAR_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ANDIKAR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ANDIKAR_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("ANDIKAR_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	if v := os.Getenv("ANDIKAR_HUMANIZER_URL"); v != "" {
		cfg.Humanizer.URL = v
	}
	if v := os.Getenv("ANDIKAR_HUMANIZER_PATH"); v != "" {
		cfg.Humanizer.Path = v
	}
	if v := os.Getenv("ANDIKAR_HUMANIZER_API_KEY"); v != "" {
		cfg.Humanizer.APIKey = v
	}
	if v := os.Getenv("ANDIKAR_HUMANIZER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Humanizer.Timeout = d
		}
	}
	if v := os.Getenv("ANDIKAR_HUMANIZER_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Humanizer.MaxRetries = n
		}
	}
	if v := os.Getenv("ANDIKAR_HUMANIZER_FALLBACK"); v != "" {
		b := parseBool(v)
		cfg.Humanizer.FallbackEnabled = &b
	}

	if v := os.Getenv("ANDIKAR_RATELIMIT_ENABLED"); v != "" {
		cfg.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("ANDIKAR_RATELIMIT_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.WindowSecs = n
		}
	}
	if v := os.Getenv("ANDIKAR_RATELIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.BurstTokens = n
		}
	}
	if v := os.Getenv("ANDIKAR_RATELIMIT_STORE"); v != "" {
		cfg.RateLimit.Store = v
	}

	if v := os.Getenv("ANDIKAR_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("ANDIKAR_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	if v := os.Getenv("ANDIKAR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ANDIKAR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ANDIKAR_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}

	if v := os.Getenv("ANDIKAR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ANDIKAR_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("ANDIKAR_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("ANDIKAR_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		// Long inputs can hold a response open past the upstream's
		// doubled timeout.
		cfg.Server.WriteTimeout = 90 * time.Second
	}

	if cfg.Humanizer.Path == "" {
		cfg.Humanizer.Path = "/humanize_text"
	}
	if cfg.Humanizer.Timeout == 0 {
		cfg.Humanizer.Timeout = 30 * time.Second
	}
	if cfg.Humanizer.LongInputWords == 0 {
		cfg.Humanizer.LongInputWords = 1000
	}
	if cfg.Humanizer.MaxRetries == 0 {
		cfg.Humanizer.MaxRetries = 2
	}
	if cfg.Humanizer.BackoffInitial == 0 {
		cfg.Humanizer.BackoffInitial = time.Second
	}

	if !cfg.RateLimit.Enabled && os.Getenv("ANDIKAR_RATELIMIT_ENABLED") == "" {
		cfg.RateLimit.Enabled = true
	}
	if cfg.RateLimit.WindowSecs == 0 {
		cfg.RateLimit.WindowSecs = 60
	}
	if cfg.RateLimit.Store == "" {
		cfg.RateLimit.Store = "memory"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "memory"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "andikar.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if !cfg.Metrics.Enabled && os.Getenv("ANDIKAR_METRICS_ENABLED") == "" {
		cfg.Metrics.Enabled = true
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if len(cfg.Tiers) == 0 {
		for _, t := range tier.Defaults() {
			cfg.Tiers = append(cfg.Tiers, TierConfig{
				Name:              t.Name,
				WordLimit:         t.WordLimit,
				DailyWordLimit:    t.DailyWordLimit,
				MonthlyWordLimit:  t.MonthlyWordLimit,
				PriceCents:        t.PriceCents,
				MaxCallsPerWindow: t.MaxCallsPerWindow,
				Features:          t.Features,
			})
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Humanizer.URL == "" {
		return fmt.Errorf("humanizer.url is required")
	}

	validDrivers := map[string]bool{"memory": true, "sqlite": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'memory' or 'sqlite', got %q", cfg.Database.Driver)
	}

	validStores := map[string]bool{"memory": true, "redis": true}
	if !validStores[cfg.RateLimit.Store] {
		return fmt.Errorf("rate_limit.store must be 'memory' or 'redis', got %q", cfg.RateLimit.Store)
	}
	if cfg.RateLimit.Store == "redis" && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when rate_limit.store is 'redis'")
	}

	seen := make(map[string]bool, len(cfg.Tiers))
	for i, t := range cfg.Tiers {
		if t.Name == "" {
			return fmt.Errorf("tiers[%d].name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("tiers[%d]: duplicate tier name %q", i, t.Name)
		}
		seen[t.Name] = true
		if t.WordLimit < 0 || t.DailyWordLimit < 0 || t.MonthlyWordLimit < 0 {
			return fmt.Errorf("tiers[%d] (%s): limits must not be negative", i, t.Name)
		}
	}

	return nil
}
