package search

import (
	"context"
	"time"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
)

const (
	DefaultTimeout        = 60 * time.Second
	DefaultMaxRetries     = 3
	DefaultCacheTTL       = time.Hour
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultRetryMaxDelay  = 5 * time.Second
)

// Upstream runs one logical search against a remote endpoint, retries
// included. Failures are *domain.ClientError.
type Upstream interface {
	Fetch(ctx context.Context, query domain.SearchQuery) (*domain.SearchResult, error)
}

// Searcher is what UI collaborators depend on.
type Searcher interface {
	Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResult, error)
}

type Config struct {
	// per-attempt deadline
	Timeout time.Duration
	// retries after the first attempt; 0 disables retrying
	MaxRetries   int
	CacheEnabled bool
	CacheTTL     time.Duration
	// disables certificate verification; for intercepting proxies only
	InsecureSkipVerify bool
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	// upstream requests per second, 0 = unlimited
	RatePerSecond float64
}

func DefaultConfig() Config {
	return Config{
		Timeout:        DefaultTimeout,
		MaxRetries:     DefaultMaxRetries,
		CacheTTL:       DefaultCacheTTL,
		RetryBaseDelay: DefaultRetryBaseDelay,
		RetryMaxDelay:  DefaultRetryMaxDelay,
	}
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		c.RetryMaxDelay = c.RetryBaseDelay
	}
	return c
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
