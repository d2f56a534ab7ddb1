// Package lru is a size-bounded cache backend. It uses one TTL for every
// entry, so per-call ttl values are ignored unless they are shorter.
package lru

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultMaxEntries = 1000

type entry struct {
	value     any
	expiresAt time.Time
}

type Cache struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

// New builds a cache holding at most maxEntries values for at most ttl.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		lru: expirable.NewLRU[string, entry](maxEntries, nil, ttl),
		now: time.Now,
	}
}

func (c *Cache) Get(key string) (any, bool) {
	e, ok := c.lru.Get(key)
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.lru.Add(key, entry{value: value, expiresAt: c.now().Add(ttl)})
}

func (c *Cache) Len() int {
	return c.lru.Len()
}
