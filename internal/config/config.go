package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
	"github.com/kitbuilder587/jgrants-search/internal/search"
)

var (
	ErrMissingToken     = errors.New("TELEGRAM_BOT_TOKEN is required")
	ErrInvalidUpstream  = errors.New("invalid upstream")
	ErrInvalidCacheType = errors.New("invalid cache type")
	ErrInvalidTimeout   = errors.New("timeout must be positive")
	ErrInvalidCacheTTL  = errors.New("cache TTL must be positive")
	ErrInvalidCacheSize = errors.New("cache max entries must be positive")
)

const (
	UpstreamJGrants = "jgrants"
	UpstreamMCP     = "mcp"

	CacheMemory = "memory"
	CacheLRU    = "lru"

	MaxRetriesLimit = 10
)

type Config struct {
	Telegram  TelegramConfig
	Upstream  UpstreamConfig
	Log       LogConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
}

type TelegramConfig struct {
	Token string
}

type UpstreamConfig struct {
	Kind               string
	JGrantsBaseURL     string
	MCPBaseURL         string
	Timeout            time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	InsecureSkipVerify bool
	RatePerSecond      float64
}

type LogConfig struct {
	Level string
	// json or console; empty picks console for debug and json otherwise
	Format string
}

type CacheConfig struct {
	Enabled    bool
	Type       string
	TTL        time.Duration
	MaxEntries int
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type MetricsConfig struct {
	Addr string
}

// Load reads the environment, after merging a .env file from the working
// directory if one exists. Variables already set win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
		},
		Upstream: UpstreamConfig{
			Kind:               getEnvOrDefault("JGRANTS_UPSTREAM", UpstreamJGrants),
			JGrantsBaseURL:     getEnvOrDefault("JGRANTS_BASE_URL", "https://api.jgrants-portal.go.jp"),
			MCPBaseURL:         getEnvOrDefault("MCP_BASE_URL", "http://127.0.0.1:8000"),
			Timeout:            time.Duration(getEnvIntOrDefault("JGRANTS_TIMEOUT_SEC", 60)) * time.Second,
			MaxRetries:         getEnvIntOrDefault("JGRANTS_MAX_RETRIES", search.DefaultMaxRetries),
			RetryBaseDelay:     time.Duration(getEnvIntOrDefault("JGRANTS_RETRY_BASE_MS", 500)) * time.Millisecond,
			RetryMaxDelay:      time.Duration(getEnvIntOrDefault("JGRANTS_RETRY_MAX_MS", 5000)) * time.Millisecond,
			InsecureSkipVerify: getEnvBoolOrDefault("JGRANTS_INSECURE_SKIP_VERIFY", false),
			RatePerSecond:      getEnvFloatOrDefault("JGRANTS_RATE_PER_SEC", 0),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: os.Getenv("LOG_FORMAT"),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBoolOrDefault("CACHE_ENABLED", false),
			Type:       getEnvOrDefault("CACHE_TYPE", CacheMemory),
			TTL:        time.Duration(getEnvIntOrDefault("CACHE_TTL_SEC", 3600)) * time.Second,
			MaxEntries: getEnvIntOrDefault("CACHE_MAX_ENTRIES", 1000),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", 10),
		},
		Metrics: MetricsConfig{
			Addr: getEnvOrDefault("METRICS_ADDR", ":9090"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Upstream.Kind {
	case UpstreamJGrants, UpstreamMCP:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidUpstream, c.Upstream.Kind)
	}
	if c.Upstream.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Upstream.MaxRetries < 0 {
		return domain.ErrInvalidMaxRetries
	}
	if c.Upstream.MaxRetries > MaxRetriesLimit {
		return domain.ErrMaxRetriesExceeded
	}

	switch c.Cache.Type {
	case CacheMemory, CacheLRU:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCacheType, c.Cache.Type)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return ErrInvalidCacheTTL
	}
	if c.Cache.Enabled && c.Cache.Type == CacheLRU && c.Cache.MaxEntries <= 0 {
		return ErrInvalidCacheSize
	}
	return nil
}

// ValidateBot adds the checks only the Telegram bot needs.
func (c *Config) ValidateBot() error {
	if c.Telegram.Token == "" {
		return ErrMissingToken
	}
	return nil
}

func (c *Config) SearchConfig() search.Config {
	return search.Config{
		Timeout:            c.Upstream.Timeout,
		MaxRetries:         c.Upstream.MaxRetries,
		CacheEnabled:       c.Cache.Enabled,
		CacheTTL:           c.Cache.TTL,
		InsecureSkipVerify: c.Upstream.InsecureSkipVerify,
		RetryBaseDelay:     c.Upstream.RetryBaseDelay,
		RetryMaxDelay:      c.Upstream.RetryMaxDelay,
		RatePerSecond:      c.Upstream.RatePerSecond,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
