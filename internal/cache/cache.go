// Package cache holds the storage behind the search result cache.
// Entries leave only by expiry (or, for bounded backends, by eviction);
// there is no delete.
package cache

import "time"

type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Len() int
}
