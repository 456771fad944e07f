package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL = "http://data4library.kr/api"
	DefaultRegion  = "11" // Seoul
)

// Rate-limit store backends
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
	StoreNone   = "none"
)

var ErrInvalid = errors.New("invalid configuration")

// UpstreamConfig describes the catalog API and its per-call budgets
type UpstreamConfig struct {
	APIKey              string        `yaml:"api_key"`
	BaseURL             string        `yaml:"base_url"`
	Region              string        `yaml:"region"`
	SearchTimeout       time.Duration `yaml:"search_timeout"`
	LibraryTimeout      time.Duration `yaml:"library_timeout"`
	AvailabilityTimeout time.Duration `yaml:"availability_timeout"`
	BreakerMaxFailures  uint32        `yaml:"breaker_max_failures"`
	BreakerCooldown     time.Duration `yaml:"breaker_cooldown"`
}

// SearchConfig bounds a single search request
type SearchConfig struct {
	Budget           time.Duration `yaml:"budget"`
	MaxTitles        int           `yaml:"max_titles"`
	MaxBooksPerTitle int           `yaml:"max_books_per_title"`
	MaxLibraries     int           `yaml:"max_libraries"`
}

// RateLimitConfig configures the per-client daily quota
type RateLimitConfig struct {
	Store      string `yaml:"store"`
	RedisURL   string `yaml:"redis_url"`
	DailyLimit int64  `yaml:"daily_limit"`
}

// Config is the root of the bookfinder configuration
type Config struct {
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Search    SearchConfig    `yaml:"search"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	LogLevel  string          `yaml:"log_level"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Upstream: UpstreamConfig{
			BaseURL:             DefaultBaseURL,
			Region:              DefaultRegion,
			SearchTimeout:       6 * time.Second,
			LibraryTimeout:      6 * time.Second,
			AvailabilityTimeout: 2 * time.Second,
			BreakerMaxFailures:  5,
			BreakerCooldown:     30 * time.Second,
		},
		Search: SearchConfig{
			Budget:           9 * time.Second,
			MaxTitles:        5,
			MaxBooksPerTitle: 3,
			MaxLibraries:     5,
		},
		RateLimit: RateLimitConfig{
			DailyLimit: 50,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file and the environment.
// An empty path falls back to BOOKFINDER_CONFIG; a missing API key is not an error here.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("BOOKFINDER_CONFIG")
	}
	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(f, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	cfg.Upstream.APIKey = strings.TrimSpace(cfg.Upstream.APIKey)
	if cfg.RateLimit.Store == "" {
		cfg.RateLimit.Store = StoreMemory
		if cfg.RateLimit.RedisURL != "" {
			cfg.RateLimit.Store = StoreRedis
		}
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	setString(&c.Upstream.APIKey, "LIBRARY_API_KEY")
	setString(&c.Upstream.BaseURL, "LIBRARY_API_URL")
	setString(&c.Upstream.Region, "LIBRARY_REGION")
	setString(&c.RateLimit.RedisURL, "REDIS_URL")
	setString(&c.RateLimit.Store, "RATE_LIMIT_STORE")
	setString(&c.LogLevel, "LOG_LEVEL")

	if v := os.Getenv("DAILY_SEARCH_LIMIT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("DAILY_SEARCH_LIMIT: %w", err)
		}
		c.RateLimit.DailyLimit = n
	}
	if v := os.Getenv("SEARCH_BUDGET"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SEARCH_BUDGET: %w", err)
		}
		c.Search.Budget = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate checks ranges and enumerations
func (c Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("%w: upstream base url is required", ErrInvalid)
	}
	if c.Upstream.SearchTimeout <= 0 || c.Upstream.LibraryTimeout <= 0 || c.Upstream.AvailabilityTimeout <= 0 {
		return fmt.Errorf("%w: upstream timeouts must be positive", ErrInvalid)
	}
	if c.Search.Budget <= 0 {
		return fmt.Errorf("%w: search budget must be positive", ErrInvalid)
	}
	if c.Search.MaxTitles < 1 || c.Search.MaxBooksPerTitle < 1 || c.Search.MaxLibraries < 1 {
		return fmt.Errorf("%w: search limits must be at least 1", ErrInvalid)
	}
	if c.RateLimit.DailyLimit < 1 {
		return fmt.Errorf("%w: daily limit must be at least 1", ErrInvalid)
	}
	switch c.RateLimit.Store {
	case StoreRedis:
		if c.RateLimit.RedisURL == "" {
			return fmt.Errorf("%w: redis rate-limit store needs REDIS_URL", ErrInvalid)
		}
	case StoreMemory, StoreNone, "":
	default:
		return fmt.Errorf("%w: unknown rate-limit store %q", ErrInvalid, c.RateLimit.Store)
	}
	return nil
}

// MaskedKey renders the API key for logs as its first and last four characters
func (c Config) MaskedKey() string {
	return MaskKey(c.Upstream.APIKey)
}

func MaskKey(key string) string {
	switch {
	case key == "":
		return "missing"
	case len(key) <= 8:
		return strings.Repeat("*", len(key))
	default:
		return key[:4] + "..." + key[len(key)-4:]
	}
}
