package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"webenv/internal/envconfig"
)

// MemoryCache implements envconfig.Cache in process. When full, the oldest
// inserted key is evicted.
type MemoryCache struct {
	mutex   sync.Mutex
	data    map[string]*list.Element
	order   *list.List
	maxKeys int
	stats   envconfig.CacheStats

	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

type cacheEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCacheConfig represents configuration for in-memory cache
type MemoryCacheConfig struct {
	MaxKeys         int           `yaml:"max_keys" default:"1000"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" default:"10m"`
}

// NewMemoryCache creates a new in-memory cache and starts its janitor.
func NewMemoryCache(config MemoryCacheConfig) (*MemoryCache, error) {
	if config.MaxKeys <= 0 {
		config.MaxKeys = 1000
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 10 * time.Minute
	}

	c := &MemoryCache{
		data:     make(map[string]*list.Element),
		order:    list.New(),
		maxKeys:  config.MaxKeys,
		interval: config.CleanupInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		stats: envconfig.CacheStats{
			Type:        envconfig.CacheTypeMemory,
			LastUpdated: time.Now(),
		},
	}

	go c.runCleanup()
	return c, nil
}

// Get retrieves a value by key
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	el, ok := c.data[key]
	if !ok {
		c.stats.Misses++
		return nil, envconfig.ErrCacheKeyNotFound
	}

	entry := el.Value.(*cacheEntry)
	if entry.expired(time.Now()) {
		c.removeElement(el)
		c.stats.Misses++
		return nil, envconfig.ErrCacheKeyNotFound
	}

	c.stats.Hits++
	return entry.value, nil
}

// Set stores a value with TTL
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	if el, ok := c.data[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.value = stored
		entry.expiresAt = expiresAt
	} else {
		for len(c.data) >= c.maxKeys {
			c.removeElement(c.order.Front())
		}
		c.data[key] = c.order.PushBack(&cacheEntry{key: key, value: stored, expiresAt: expiresAt})
	}

	c.stats.LastUpdated = time.Now()
	return nil
}

// Delete removes a key from cache
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if el, ok := c.data[key]; ok {
		c.removeElement(el)
		c.stats.LastUpdated = time.Now()
	}
	return nil
}

// Exists checks if a key exists and has not expired
func (c *MemoryCache) Exists(_ context.Context, key string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	el, ok := c.data[key]
	return ok && !el.Value.(*cacheEntry).expired(time.Now())
}

// Close stops the janitor. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.once.Do(func() {
		close(c.stop)
		<-c.done
	})
	return nil
}

// Stats returns cache statistics
func (c *MemoryCache) Stats() envconfig.CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stats := c.stats
	stats.Keys = int64(len(c.data))
	return stats
}

func (c *MemoryCache) removeElement(el *list.Element) {
	entry := c.order.Remove(el).(*cacheEntry)
	delete(c.data, entry.key)
}

func (c *MemoryCache) runCleanup() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stop:
			return
		}
	}
}

// cleanup removes expired entries
func (c *MemoryCache) cleanup() {
	now := time.Now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*cacheEntry).expired(now) {
			c.removeElement(el)
		}
		el = next
	}
	c.stats.LastUpdated = now
}
