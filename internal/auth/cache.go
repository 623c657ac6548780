package auth

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shiptrack/gateway/internal/observability"
	"github.com/shiptrack/gateway/internal/pipeline"
)

// DefaultCacheTTL is how long a successful authentication result is
// reused before the credential is re-verified against its store.
const DefaultCacheTTL = 5 * time.Minute

// DefaultCacheMaxEntries bounds the in-memory cache size.
const DefaultCacheMaxEntries = 10000

// CachedResult is a cached successful authentication.
type CachedResult struct {
	// Principal is the authenticated identity.
	Principal *pipeline.Principal `json:"principal"`

	// Provider is the name of the provider that produced it.
	Provider string `json:"provider"`

	// CachedAt is when the result was stored.
	CachedAt time.Time `json:"cached_at"`
}

// ResultCache caches successful authentication results keyed by
// credential. It is a performance optimization only: callers must
// re-verify expiry and enablement before trusting a hit.
type ResultCache interface {
	// Get returns the cached result for the credential, if present.
	Get(ctx context.Context, credential string) (*CachedResult, bool)

	// Put stores a result for the credential.
	Put(ctx context.Context, credential string, result *CachedResult)

	// Invalidate removes the cached result for the credential.
	Invalidate(ctx context.Context, credential string)
}

// CacheKey derives the cache key for a credential. Raw credentials are
// never used as keys so they cannot leak through the cache backend.
func CacheKey(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

type memoryCacheEntry struct {
	key    string
	result *CachedResult
	elem   *list.Element
}

// MemoryResultCache is an in-memory LRU result cache with TTL.
type MemoryResultCache struct {
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]*memoryCacheEntry
	order   *list.List
}

// MemoryCacheOption is a functional option for the memory cache.
type MemoryCacheOption func(*MemoryResultCache)

// WithCacheTTL sets the entry TTL.
func WithCacheTTL(ttl time.Duration) MemoryCacheOption {
	return func(c *MemoryResultCache) {
		c.ttl = ttl
	}
}

// WithCacheMaxEntries sets the entry cap.
func WithCacheMaxEntries(n int) MemoryCacheOption {
	return func(c *MemoryResultCache) {
		c.maxEntries = n
	}
}

// NewMemoryResultCache creates an in-memory result cache.
func NewMemoryResultCache(opts ...MemoryCacheOption) *MemoryResultCache {
	c := &MemoryResultCache{
		ttl:        DefaultCacheTTL,
		maxEntries: DefaultCacheMaxEntries,
		entries:    make(map[string]*memoryCacheEntry),
		order:      list.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get implements ResultCache.
func (c *MemoryResultCache) Get(ctx context.Context, credential string) (*CachedResult, bool) {
	key := CacheKey(credential)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if time.Since(entry.result.CachedAt) > c.ttl {
		c.order.Remove(entry.elem)
		delete(c.entries, key)
		return nil, false
	}

	c.order.MoveToFront(entry.elem)
	return entry.result, true
}

// Put implements ResultCache.
func (c *MemoryResultCache) Put(ctx context.Context, credential string, result *CachedResult) {
	key := CacheKey(credential)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		existing.result = result
		c.order.MoveToFront(existing.elem)
		return
	}

	entry := &memoryCacheEntry{key: key, result: result}
	entry.elem = c.order.PushFront(entry)
	c.entries[key] = entry

	for len(c.entries) > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*memoryCacheEntry)
		c.order.Remove(oldest)
		delete(c.entries, evicted.key)
	}
}

// Invalidate implements ResultCache.
func (c *MemoryResultCache) Invalidate(ctx context.Context, credential string) {
	key := CacheKey(credential)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		c.order.Remove(entry.elem)
		delete(c.entries, key)
	}
}

// Len returns the number of cached entries.
func (c *MemoryResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisResultCache is a Redis-backed result cache shared across
// gateway instances.
type RedisResultCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger observability.Logger
}

// RedisCacheOption is a functional option for the Redis cache.
type RedisCacheOption func(*RedisResultCache)

// WithRedisCacheTTL sets the entry TTL.
func WithRedisCacheTTL(ttl time.Duration) RedisCacheOption {
	return func(c *RedisResultCache) {
		c.ttl = ttl
	}
}

// WithRedisCacheLogger sets the logger.
func WithRedisCacheLogger(logger observability.Logger) RedisCacheOption {
	return func(c *RedisResultCache) {
		c.logger = logger
	}
}

// NewRedisResultCache creates a Redis-backed result cache.
func NewRedisResultCache(client redis.UniversalClient, prefix string, opts ...RedisCacheOption) *RedisResultCache {
	if prefix == "" {
		prefix = "authcache:"
	}

	c := &RedisResultCache{
		client: client,
		prefix: prefix,
		ttl:    DefaultCacheTTL,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get implements ResultCache. Backend failures are treated as misses.
func (c *RedisResultCache) Get(ctx context.Context, credential string) (*CachedResult, bool) {
	data, err := c.client.Get(ctx, c.prefix+CacheKey(credential)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("auth cache read failed", observability.Error(err))
		}
		return nil, false
	}

	var result CachedResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("auth cache entry corrupt", observability.Error(err))
		return nil, false
	}

	return &result, true
}

// Put implements ResultCache.
func (c *RedisResultCache) Put(ctx context.Context, credential string, result *CachedResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, c.prefix+CacheKey(credential), data, c.ttl).Err(); err != nil {
		c.logger.Warn("auth cache write failed", observability.Error(err))
	}
}

// Invalidate implements ResultCache.
func (c *RedisResultCache) Invalidate(ctx context.Context, credential string) {
	if err := c.client.Del(ctx, c.prefix+CacheKey(credential)).Err(); err != nil {
		c.logger.Warn("auth cache invalidate failed", observability.Error(err))
	}
}

// Ensure implementations satisfy ResultCache.
var (
	_ ResultCache = (*MemoryResultCache)(nil)
	_ ResultCache = (*RedisResultCache)(nil)
)
