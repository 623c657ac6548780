package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiptrack/gateway/internal/pipeline"
)

func cachedResult(subject string) *CachedResult {
	return &CachedResult{
		Principal: &pipeline.Principal{Subject: subject, Provider: "api_key"},
		Provider:  "api_key",
		CachedAt:  time.Now(),
	}
}

func TestMemoryResultCache_PutGet(t *testing.T) {
	cache := NewMemoryResultCache()
	ctx := context.Background()

	_, ok := cache.Get(ctx, "sk-live-abc")
	assert.False(t, ok)

	cache.Put(ctx, "sk-live-abc", cachedResult("key-1"))

	result, ok := cache.Get(ctx, "sk-live-abc")
	require.True(t, ok)
	assert.Equal(t, "key-1", result.Principal.Subject)

	cache.Invalidate(ctx, "sk-live-abc")
	_, ok = cache.Get(ctx, "sk-live-abc")
	assert.False(t, ok)
}

func TestMemoryResultCache_TTLExpiry(t *testing.T) {
	cache := NewMemoryResultCache(WithCacheTTL(10 * time.Millisecond))
	ctx := context.Background()

	cache.Put(ctx, "cred", cachedResult("key-1"))
	time.Sleep(20 * time.Millisecond)

	_, ok := cache.Get(ctx, "cred")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryResultCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewMemoryResultCache(WithCacheMaxEntries(2))
	ctx := context.Background()

	cache.Put(ctx, "a", cachedResult("a"))
	cache.Put(ctx, "b", cachedResult("b"))

	// Touch "a" so "b" is the eviction candidate.
	_, ok := cache.Get(ctx, "a")
	require.True(t, ok)

	cache.Put(ctx, "c", cachedResult("c"))
	assert.Equal(t, 2, cache.Len())

	_, ok = cache.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = cache.Get(ctx, "c")
	assert.True(t, ok)
}

func TestRedisResultCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRedisResultCache(client, "authcache:")
	ctx := context.Background()

	cache.Put(ctx, "sk-live-abc", cachedResult("key-1"))

	result, ok := cache.Get(ctx, "sk-live-abc")
	require.True(t, ok)
	assert.Equal(t, "key-1", result.Principal.Subject)
	assert.Equal(t, "api_key", result.Provider)

	// Raw credentials never appear in the backend.
	for _, key := range mr.Keys() {
		assert.NotContains(t, key, "sk-live-abc")
	}

	cache.Invalidate(ctx, "sk-live-abc")
	_, ok = cache.Get(ctx, "sk-live-abc")
	assert.False(t, ok)
}

func TestRedisResultCache_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRedisResultCache(client, "", WithRedisCacheTTL(time.Minute))
	ctx := context.Background()

	cache.Put(ctx, "cred", cachedResult("key-1"))

	mr.FastForward(2 * time.Minute)
	_, ok := cache.Get(ctx, "cred")
	assert.False(t, ok)
}
