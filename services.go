package main

import (
	"context"
	"fmt"

	"sjsage522/leafletworker/config"
	"sjsage522/leafletworker/logger"
	"sjsage522/leafletworker/services/cache"
	"sjsage522/leafletworker/services/publisher"
	"sjsage522/leafletworker/services/store"
)

// Services holds all the initialized services
type Services struct {
	Store     store.Store
	Block     *cache.RateLimitBlock
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices initializes all required services. Memcache and Redis
// are optional and only logged when unreachable.
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{Publisher: publisher.NopPublisher{}}

	st, err := store.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	services.Store = st
	logger.Info("Using %s store", cfg.StoreBackend)

	var cacheService cache.CacheService
	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			logger.Warn("Memcache at %s unreachable: %v", cfg.MemcacheAddr, err)
		} else {
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
		cacheService = mc
	}
	services.Block = cache.NewRateLimitBlock(cacheService, cfg.RateLimitBlock)

	if cfg.RedisAddr != "" {
		services.Publisher = publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamMaxLength,
		)
		logger.Info("Publishing run events to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	return services, nil
}
