package cache

import (
	"fmt"

	"webenv/internal/envconfig"
)

// NewCache creates a cache based on the provided configuration.
// Redis failures fall back to the memory cache.
func NewCache(config envconfig.CacheConfig, logger envconfig.Logger) (envconfig.Cache, error) {
	switch config.Type {
	case envconfig.CacheTypeRedis:
		return createRedisCache(config, logger)
	default:
		return createMemoryCache(config, logger)
	}
}

func createRedisCache(config envconfig.CacheConfig, logger envconfig.Logger) (envconfig.Cache, error) {
	if config.RedisURL == "" {
		logger.Info("Redis URL not configured, falling back to memory cache")
		return createMemoryCache(config, logger)
	}

	logger.Info("attempting to connect to Redis", "db", config.RedisDB)

	redisCache, err := NewRedisCache(RedisCacheConfig{
		Address:      config.RedisURL,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		KeyPrefix:    config.KeyPrefix,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
	})
	if err != nil {
		logger.Warn("failed to connect to Redis, falling back to memory cache", "error", err)
		return createMemoryCache(config, logger)
	}

	logger.Info("Redis cache initialized successfully")
	return redisCache, nil
}

func createMemoryCache(config envconfig.CacheConfig, logger envconfig.Logger) (envconfig.Cache, error) {
	logger.Info("initializing memory cache",
		"max_keys", config.MaxKeys,
		"cleanup_interval", config.CleanupInterval)

	memoryCache, err := NewMemoryCache(MemoryCacheConfig{
		MaxKeys:         config.MaxKeys,
		CleanupInterval: config.CleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return memoryCache, nil
}
