package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cache := NewRedisCacheWithClient(client, DefaultConfig())
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func setupMemory(t *testing.T) *MemoryCache {
	t.Helper()

	cache := NewMemoryCache()
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

// providers runs fn against every backend
func providers(t *testing.T, fn func(t *testing.T, p Provider)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, setupMemory(t))
	})
	t.Run("redis", func(t *testing.T) {
		cache, _ := setupTestRedis(t)
		fn(t, cache)
	})
}

func TestProvider_SetAndGet(t *testing.T) {
	providers(t, func(t *testing.T, p Provider) {
		ctx := context.Background()

		require.NoError(t, p.Set(ctx, "1", []byte("row"), "posts", time.Minute))

		got, err := p.Get(ctx, "1", "posts")
		require.NoError(t, err)
		assert.Equal(t, []byte("row"), got)
	})
}

func TestProvider_GroupsAreIsolated(t *testing.T) {
	providers(t, func(t *testing.T, p Provider) {
		ctx := context.Background()

		require.NoError(t, p.Set(ctx, "hello", []byte("1"), "posts-by-slug", time.Minute))

		_, err := p.Get(ctx, "hello", "posts")
		assert.True(t, IsCacheMiss(err))

		got, err := p.Get(ctx, "hello", "posts-by-slug")
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), got)
	})
}

func TestProvider_Miss(t *testing.T) {
	providers(t, func(t *testing.T, p Provider) {
		_, err := p.Get(context.Background(), "missing", "posts")
		require.Error(t, err)
		assert.True(t, IsCacheMiss(err))

		var miss ErrCacheMiss
		require.True(t, errors.As(err, &miss))
		assert.Equal(t, "missing", miss.Key)
		assert.Equal(t, "posts", miss.Group)
	})
}

func TestProvider_Delete(t *testing.T) {
	providers(t, func(t *testing.T, p Provider) {
		ctx := context.Background()

		require.NoError(t, p.Set(ctx, "1", []byte("row"), "posts", time.Minute))
		require.NoError(t, p.Delete(ctx, "1", "posts"))

		_, err := p.Get(ctx, "1", "posts")
		assert.True(t, IsCacheMiss(err))

		// Deleting a missing key is not an error
		assert.NoError(t, p.Delete(ctx, "1", "posts"))
	})
}

func TestProvider_ClearGroup(t *testing.T) {
	providers(t, func(t *testing.T, p Provider) {
		ctx := context.Background()

		require.NoError(t, p.Set(ctx, "1", []byte("a"), "posts", time.Minute))
		require.NoError(t, p.Set(ctx, "2", []byte("b"), "posts", time.Minute))
		require.NoError(t, p.Set(ctx, "1", []byte("m"), "postsmeta", time.Minute))

		require.NoError(t, p.Clear(ctx, "posts"))

		_, err := p.Get(ctx, "1", "posts")
		assert.True(t, IsCacheMiss(err))
		_, err = p.Get(ctx, "2", "posts")
		assert.True(t, IsCacheMiss(err))

		got, err := p.Get(ctx, "1", "postsmeta")
		require.NoError(t, err)
		assert.Equal(t, []byte("m"), got)
	})
}

func TestMemoryCache_Expiration(t *testing.T) {
	cache := setupMemory(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "1", []byte("row"), "posts", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := cache.Get(ctx, "1", "posts")
	assert.True(t, IsCacheMiss(err))
}

func TestMemoryCache_NegativeTTLPersists(t *testing.T) {
	cache := NewMemoryCacheWithConfig(Config{DefaultTTL: time.Millisecond})
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "token", []byte("1"), "posts", -1))
	time.Sleep(5 * time.Millisecond)

	got, err := cache.Get(ctx, "token", "posts")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	cache := setupMemory(t)
	ctx := context.Background()

	value := []byte("row")
	require.NoError(t, cache.Set(ctx, "1", value, "posts", time.Minute))
	value[0] = 'X'

	got, err := cache.Get(ctx, "1", "posts")
	require.NoError(t, err)
	got[1] = 'X'

	again, err := cache.Get(ctx, "1", "posts")
	require.NoError(t, err)
	assert.Equal(t, []byte("row"), again)
}

func TestMemoryCache_CanceledContext(t *testing.T) {
	cache := setupMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cache.Get(ctx, "1", "posts")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, cache.Set(ctx, "1", nil, "posts", 0), context.Canceled)
	assert.ErrorIs(t, cache.Delete(ctx, "1", "posts"), context.Canceled)
	assert.ErrorIs(t, cache.Clear(ctx, "posts"), context.Canceled)
}

func TestRedisCache_TTL(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "1", []byte("row"), "posts", time.Minute))
	require.NoError(t, cache.Set(ctx, "token", []byte("1"), "posts", -1))
	require.NoError(t, cache.Set(ctx, "default", []byte("d"), "posts", 0))

	assert.Equal(t, time.Minute, mr.TTL("tablequery:posts:1"))
	assert.Equal(t, time.Duration(0), mr.TTL("tablequery:posts:token"))
	assert.Equal(t, DefaultConfig().DefaultTTL, mr.TTL("tablequery:posts:default"))

	mr.FastForward(2 * time.Minute)

	_, err := cache.Get(ctx, "1", "posts")
	assert.True(t, IsCacheMiss(err))

	got, err := cache.Get(ctx, "token", "posts")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
}

func TestNewRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()

	cache, err := NewRedisCache(context.Background(), cfg)
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Set(context.Background(), "k", []byte("v"), "g", 0))
	assert.True(t, mr.Exists("tablequery:g:k"))
}

func TestNewRedisCache_ConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()
	mr.Close()

	_, err := NewRedisCache(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRedisCache_ServerError(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.SetError("boom")

	_, err := cache.Get(context.Background(), "1", "posts")
	require.Error(t, err)
	assert.False(t, IsCacheMiss(err))
}
