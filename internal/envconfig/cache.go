package envconfig

import (
	"context"
	"time"
)

// CacheType represents cache implementation types
type CacheType int

const (
	CacheTypeMemory CacheType = iota
	CacheTypeRedis
)

// String returns the string representation of the cache type
func (c CacheType) String() string {
	switch c {
	case CacheTypeRedis:
		return "redis"
	default:
		return "memory"
	}
}

// MarshalText lets the cache type appear by name in JSON.
func (c CacheType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts "memory" or "redis" in YAML and JSON.
func (c *CacheType) UnmarshalText(text []byte) error {
	*c = ParseCacheType(string(text))
	return nil
}

// ParseCacheType parses a string to CacheType
func ParseCacheType(s string) CacheType {
	switch s {
	case "redis":
		return CacheTypeRedis
	default:
		return CacheTypeMemory
	}
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	Type            CacheType     `yaml:"type" default:"memory"`
	RedisURL        string        `yaml:"redis_url"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db" default:"0"`
	KeyPrefix       string        `yaml:"key_prefix" default:"webenv:"`
	MaxKeys         int           `yaml:"max_keys" default:"1000"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" default:"10m"`
	DefaultTTL      time.Duration `yaml:"default_ttl" default:"1h"`
}

// Cache stores rendered scripts and verified token claims.
type Cache interface {
	// Get returns ErrCacheKeyNotFound if the key doesn't exist or expired
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with TTL. TTL of 0 means no expiration
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) bool
	Close() error
	Stats() CacheStats
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	Keys        int64     `json:"keys"`
	LastUpdated time.Time `json:"last_updated"`
	Type        CacheType `json:"type"`
}
