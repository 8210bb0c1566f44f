package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pario-ai/narrator/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all narrator configuration.
type Config struct {
	Listen    string             `yaml:"listen" env:"NARRATOR_LISTEN"`
	Endpoints []EndpointConfig   `yaml:"endpoints"`
	Request   RequestConfig      `yaml:"request"`
	Health    HealthConfig       `yaml:"health"`
	Cache     CacheConfig        `yaml:"cache"`
	Context   ContextConfig      `yaml:"context"`
	Audit     models.AuditConfig `yaml:"audit"`
}

// Endpoint types.
const (
	EndpointHTTP      = "http"
	EndpointOpenAI    = "openai"
	EndpointAnthropic = "anthropic"
	EndpointGemini    = "gemini"
)

// EndpointConfig defines one external inference service.
// Type is "http" (default, any OpenAI-compatible server), "openai",
// "anthropic" or "gemini".
type EndpointConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	HealthPath string `yaml:"health_path"`
	MaxTokens  int    `yaml:"max_tokens"`
}

// RequestConfig controls per-call timeouts, retries and backoff.
type RequestConfig struct {
	Timeout           time.Duration `yaml:"timeout" env:"NARRATOR_REQUEST_TIMEOUT"`
	MaxAttempts       int           `yaml:"max_attempts" env:"NARRATOR_MAX_ATTEMPTS"`
	BackoffBase       time.Duration `yaml:"backoff_base" env:"NARRATOR_BACKOFF_BASE"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" env:"NARRATOR_BACKOFF_MULTIPLIER"`
	BackoffMax        time.Duration `yaml:"backoff_max" env:"NARRATOR_BACKOFF_MAX"`
	RetryableStatuses []int         `yaml:"retryable_statuses" env:"NARRATOR_RETRYABLE_STATUSES"`
	Dedupe            bool          `yaml:"dedupe" env:"NARRATOR_DEDUPE"`
}

// HealthConfig controls the background health monitor.
type HealthConfig struct {
	Interval           time.Duration `yaml:"interval" env:"NARRATOR_HEALTH_INTERVAL"`
	Timeout            time.Duration `yaml:"timeout" env:"NARRATOR_HEALTH_TIMEOUT"`
	UnhealthyThreshold int           `yaml:"unhealthy_threshold" env:"NARRATOR_UNHEALTHY_THRESHOLD"`
	ProbeOnStart       bool          `yaml:"probe_on_start" env:"NARRATOR_PROBE_ON_START"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" env:"NARRATOR_CACHE_ENABLED"`
	TTL            time.Duration `yaml:"ttl" env:"NARRATOR_CACHE_TTL"`
	Capacity       int           `yaml:"capacity" env:"NARRATOR_CACHE_CAPACITY"`
	EvictFraction  float64       `yaml:"evict_fraction" env:"NARRATOR_CACHE_EVICT_FRACTION"`
	SweepInterval  time.Duration `yaml:"sweep_interval" env:"NARRATOR_CACHE_SWEEP_INTERVAL"`
	ScopeBySession bool          `yaml:"scope_by_session" env:"NARRATOR_CACHE_SCOPE_BY_SESSION"`
	Store          StoreConfig   `yaml:"store"`
}

// Cache store types.
const (
	StoreNone   = "none"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// StoreConfig selects an optional second-tier cache store.
type StoreConfig struct {
	Type          string `yaml:"type" env:"NARRATOR_CACHE_STORE"`
	DBPath        string `yaml:"db_path" env:"NARRATOR_CACHE_DB_PATH"`
	RedisAddr     string `yaml:"redis_addr" env:"NARRATOR_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"NARRATOR_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"NARRATOR_REDIS_DB"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// ContextConfig bounds the optimized context sent upstream.
type ContextConfig struct {
	MaxChars           int      `yaml:"max_chars" env:"NARRATOR_CONTEXT_MAX_CHARS"`
	InventoryThreshold int      `yaml:"inventory_threshold"`
	EventLimit         int      `yaml:"event_limit"`
	EventCategories    []string `yaml:"event_categories"`
	HistoryMessages    int      `yaml:"history_messages"`
	HistoryTokens      int      `yaml:"history_tokens"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Request: RequestConfig{
			Timeout:           30 * time.Second,
			MaxAttempts:       3,
			BackoffBase:       time.Second,
			BackoffMultiplier: 2,
			BackoffMax:        30 * time.Second,
			RetryableStatuses: []int{429, 500, 502, 503, 504},
			Dedupe:            true,
		},
		Health: HealthConfig{
			Interval:           60 * time.Second,
			Timeout:            5 * time.Second,
			UnhealthyThreshold: 3,
			ProbeOnStart:       true,
		},
		Cache: CacheConfig{
			Enabled:        true,
			TTL:            300 * time.Second,
			Capacity:       1000,
			EvictFraction:  0.25,
			SweepInterval:  time.Minute,
			ScopeBySession: true,
			Store: StoreConfig{
				Type:      StoreNone,
				DBPath:    "narrator.db",
				KeyPrefix: "narrator:",
			},
		},
		Context: ContextConfig{
			MaxChars:           2000,
			InventoryThreshold: 10,
			EventLimit:         5,
			EventCategories:    []string{"success", "error", "quest", "warning"},
			HistoryMessages:    10,
			HistoryTokens:      1000,
		},
		Audit: models.AuditConfig{
			Enabled:       false,
			DBPath:        "narrator-audit.db",
			RetentionDays: 30,
			Include:       []string{"inputs", "responses"},
			MaxBodySize:   8192,
		},
	}
}

// Load reads a YAML config file, expands environment variables, applies
// NARRATOR_* overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	for i := range cfg.Endpoints {
		cfg.Endpoints[i].ApplyDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset endpoint fields.
func (e *EndpointConfig) ApplyDefaults() {
	if e.Type == "" {
		e.Type = EndpointHTTP
	}
	if e.Type == EndpointHTTP && e.HealthPath == "" {
		e.HealthPath = "/v1/models"
	}
	if e.MaxTokens == 0 {
		e.MaxTokens = 512
	}
}

// Endpoint returns the endpoint config with the given name.
func (c *Config) Endpoint(name string) (EndpointConfig, bool) {
	for _, e := range c.Endpoints {
		if e.Name == name {
			return e, true
		}
	}
	return EndpointConfig{}, false
}
