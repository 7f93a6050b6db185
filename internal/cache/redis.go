package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"webenv/internal/envconfig"
)

// RedisCache implements envconfig.Cache on Redis so replicas share rendered
// scripts and verified tokens.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string

	hits        atomic.Int64
	misses      atomic.Int64
	lastUpdated atomic.Int64 // unix nanos
}

// RedisCacheConfig represents Redis cache configuration
type RedisCacheConfig struct {
	Address      string `yaml:"address" default:"redis://localhost:6379"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db" default:"0"`
	KeyPrefix    string `yaml:"key_prefix" default:"webenv:"`
	MaxRetries   int    `yaml:"max_retries" default:"3"`
	PoolSize     int    `yaml:"pool_size" default:"10"`
	MinIdleConns int    `yaml:"min_idle_conns" default:"5"`
}

// NewRedisCache connects to Redis and verifies the connection with PING.
func NewRedisCache(config RedisCacheConfig) (*RedisCache, error) {
	opt, err := redis.ParseURL(config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.Password != "" {
		opt.Password = config.Password
	}
	if config.DB != 0 {
		opt.DB = config.DB
	}
	opt.MaxRetries = config.MaxRetries
	opt.PoolSize = config.PoolSize
	opt.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := &RedisCache{
		client:    client,
		keyPrefix: config.KeyPrefix,
	}
	c.touch()
	return c, nil
}

func (c *RedisCache) key(k string) string {
	return c.keyPrefix + k
}

func (c *RedisCache) touch() {
	c.lastUpdated.Store(time.Now().UnixNano())
}

// Get retrieves a value by key
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.misses.Add(1)
			return nil, envconfig.ErrCacheKeyNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	c.hits.Add(1)
	return value, nil
}

// Set stores a value with TTL
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	c.touch()
	return nil
}

// Delete removes a key from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	c.touch()
	return nil
}

// Exists checks if a key exists
func (c *RedisCache) Exists(ctx context.Context, key string) bool {
	count, err := c.client.Exists(ctx, c.key(key)).Result()
	return err == nil && count > 0
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Stats returns cache statistics. Keys counts only keys under the prefix.
func (c *RedisCache) Stats() envconfig.CacheStats {
	stats := envconfig.CacheStats{
		Type:        envconfig.CacheTypeRedis,
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		LastUpdated: time.Unix(0, c.lastUpdated.Load()),
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var keys int64
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys++
	}
	if iter.Err() == nil {
		stats.Keys = keys
	}
	return stats
}
