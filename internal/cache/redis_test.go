package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webenv/internal/envconfig"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)

	c, err := NewRedisCache(RedisCacheConfig{
		Address:   "redis://" + s.Addr(),
		KeyPrefix: "webenv:",
		PoolSize:  2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func TestNewRedisCache(t *testing.T) {
	t.Run("Invalid Redis URL", func(t *testing.T) {
		c, err := NewRedisCache(RedisCacheConfig{Address: "invalid://url:with:malformed:format"})
		assert.Nil(t, c)
		assert.ErrorContains(t, err, "failed to parse Redis URL")
	})

	t.Run("Connection fails", func(t *testing.T) {
		s := miniredis.RunT(t)
		addr := s.Addr()
		s.Close()

		c, err := NewRedisCache(RedisCacheConfig{Address: "redis://" + addr, MaxRetries: -1})
		assert.Nil(t, c)
		assert.ErrorContains(t, err, "failed to connect to Redis")
	})

	t.Run("Connection with password", func(t *testing.T) {
		s := miniredis.RunT(t)
		s.RequireAuth("secret")

		_, err := NewRedisCache(RedisCacheConfig{Address: "redis://" + s.Addr(), MaxRetries: -1})
		assert.Error(t, err)

		c, err := NewRedisCache(RedisCacheConfig{Address: "redis://" + s.Addr(), Password: "secret"})
		require.NoError(t, err)
		assert.NoError(t, c.Close())
	})
}

func TestRedisCache_Operations(t *testing.T) {
	c, s := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "script:abc", []byte("window.ENV = {}"), time.Minute))
	assert.True(t, s.Exists("webenv:script:abc"), "keys are stored under the prefix")

	v, err := c.Get(ctx, "script:abc")
	require.NoError(t, err)
	assert.Equal(t, "window.ENV = {}", string(v))
	assert.True(t, c.Exists(ctx, "script:abc"))

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, envconfig.ErrCacheKeyNotFound)

	require.NoError(t, c.Delete(ctx, "script:abc"))
	assert.False(t, c.Exists(ctx, "script:abc"))
}

func TestRedisCache_TTL(t *testing.T) {
	c, s := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "token", []byte("claims"), time.Minute))
	assert.Equal(t, time.Minute, s.TTL("webenv:token"))

	s.FastForward(2 * time.Minute)
	_, err := c.Get(ctx, "token")
	assert.ErrorIs(t, err, envconfig.ErrCacheKeyNotFound)
}

func TestRedisCache_Stats(t *testing.T) {
	c, s := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, s.Set("other:key", "not ours"))
	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	_, _ = c.Get(ctx, "a")
	_, _ = c.Get(ctx, "nope")

	stats := c.Stats()
	assert.Equal(t, envconfig.CacheTypeRedis, stats.Type)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.Keys)
	assert.False(t, stats.LastUpdated.IsZero())
}

func TestRedisCache_GetAfterServerClosed(t *testing.T) {
	c, s := newTestRedisCache(t)
	s.Close()

	_, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, envconfig.ErrCacheKeyNotFound)
}
