package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementWithExpiryScript atomically increments a counter and sets the
// expiration on first write.
// KEYS[1] = key, ARGV[1] = delta, ARGV[2] = expiration in seconds
var incrementWithExpiryScript = redis.NewScript(`
	local current = redis.call('INCRBY', KEYS[1], ARGV[1])
	if current == tonumber(ARGV[1]) then
		redis.call('EXPIRE', KEYS[1], ARGV[2])
	end
	return current
`)

// RedisStore implements Store using Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	Prefix       string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns a RedisConfig with default values.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Address:      "localhost:6379",
		Prefix:       "ratelimit:",
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// NewRedisStore creates a new Redis-backed rate limit store.
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return &RedisStore{
		client: client,
		prefix: cfg.Prefix,
	}, nil
}

// NewRedisStoreWithClient wraps an existing redis client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Get retrieves the counter value for the given key.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, &ErrKeyNotFound{Key: key}
		}
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// Set sets the counter value for the given key with an expiration.
func (s *RedisStore) Set(ctx context.Context, key string, value int64, expiration time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, value, expiration).Err()
}

// IncrementWithExpiry increments the counter atomically, setting the
// expiration on first write.
func (s *RedisStore) IncrementWithExpiry(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, error) {
	seconds := int64(expiration.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	res, err := incrementWithExpiryScript.Run(ctx, s.client, []string{s.prefix + key}, delta, seconds).Int64()
	if err != nil {
		return 0, err
	}
	return res, nil
}

// Delete removes the key from the store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Close closes the underlying redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
