package cache

import (
	"errors"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"sjsage522/leafletworker/logger"
)

const blockKeyPrefix = "leaflet:ratelimit:"

// RateLimitBlock remembers retailers that answered with a rate-limit status
// so later fetches in the block window fail fast.
type RateLimitBlock struct {
	svc      CacheService
	duration time.Duration
	log      *logger.Logger
}

// NewRateLimitBlock creates a block over svc. A nil svc disables blocking.
func NewRateLimitBlock(svc CacheService, duration time.Duration) *RateLimitBlock {
	return &RateLimitBlock{svc: svc, duration: duration, log: logger.ForCache()}
}

// Duration is how long a block lasts.
func (b *RateLimitBlock) Duration() time.Duration {
	if b == nil {
		return 0
	}
	return b.duration
}

// Blocked reports whether store is inside a block window. Cache errors other
// than a miss are logged and treated as not blocked.
func (b *RateLimitBlock) Blocked(store string) bool {
	if b == nil || b.svc == nil {
		return false
	}
	_, err := b.svc.Get(blockKey(store))
	if err == nil {
		return true
	}
	if !errors.Is(err, memcache.ErrCacheMiss) {
		b.log.Warn().Err(err).Str("store", store).Msg("Rate-limit lookup failed")
	}
	return false
}

// Block starts a block window for store.
func (b *RateLimitBlock) Block(store string) {
	if b == nil || b.svc == nil {
		return
	}
	value := []byte(strconv.Itoa(int(b.duration / time.Second)))
	if err := b.svc.Set(blockKey(store), value, b.duration); err != nil {
		b.log.Warn().Err(err).Str("store", store).Msg("Failed to store rate-limit block")
		return
	}
	b.log.Info().Str("store", store).Dur("block", b.duration).Msg("Retailer rate limited")
}

// Clear lifts a block early.
func (b *RateLimitBlock) Clear(store string) error {
	if b == nil || b.svc == nil {
		return nil
	}
	err := b.svc.Delete(blockKey(store))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

func blockKey(store string) string {
	return blockKeyPrefix + store
}
