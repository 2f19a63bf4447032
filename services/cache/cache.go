package cache

import (
	"time"
)

// CacheService is the key/value store behind RateLimitBlock, which keeps a
// retailer that answered 429 blocked across worker runs.
type CacheService interface {
	// Get returns the value for key or memcache.ErrCacheMiss
	Get(key string) ([]byte, error)

	// Set stores value under key until expiration elapses
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes key
	Delete(key string) error
}
