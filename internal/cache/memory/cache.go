package memory

import (
	"context"
	"sync"
	"time"
)

const DefaultCleanupInterval = 5 * time.Minute

type item struct {
	value     any
	expiresAt time.Time
}

// Cache - in-memory TTL cache, safe for concurrent use
type Cache struct {
	mu       sync.RWMutex
	items    map[string]item
	now      func() time.Time
	interval time.Duration
	stopChan chan struct{}
	stopped  bool
}

type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithCleanupInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.interval = d
		}
	}
}

func New(opts ...Option) *Cache {
	return NewWithContext(context.Background(), opts...)
}

func NewWithContext(ctx context.Context, opts ...Option) *Cache {
	c := &Cache{
		items:    make(map[string]item),
		now:      time.Now,
		interval: DefaultCleanupInterval,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.cleanup(ctx)
	return c
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[key]
	if !ok || c.now().After(it.expiresAt) {
		return nil, false
	}
	return it.value, true
}

// Set inserts or replaces the value under key.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.items[key] = item{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Len counts stored items, including expired ones not yet swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.stopChan)
	}
	c.mu.Unlock()
}

func (c *Cache) cleanup(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, k)
		}
	}
}
