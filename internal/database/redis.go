package database

import (
	"context"
	"time"

	"tenantdb/pkg/cache"
	"tenantdb/pkg/config"
	"tenantdb/pkg/logger"
)

// OpenRedisStore connects to Redis, or returns nil when Redis is disabled or
// unreachable. Callers treat nil as "no cache and no denylist".
func OpenRedisStore(cfg *config.Config) *cache.RedisStore {
	if !cfg.Redis.Enabled {
		return nil
	}
	store := cache.NewRedisStore(&cache.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		logger.GetLogger().Errorf("Redis unavailable, tenant cache and token denylist disabled: %v", err)
		_ = store.Close()
		return nil
	}
	return store
}
