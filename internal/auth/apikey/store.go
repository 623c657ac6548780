package apikey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store errors.
var (
	// ErrKeyNotFound indicates that no key matches the digest.
	ErrKeyNotFound = errors.New("API key not found")

	// ErrKeyExists indicates a create collision.
	ErrKeyExists = errors.New("API key already exists")
)

// Store persists API keys indexed by the sha256 digest of their raw
// value.
type Store interface {
	// Get retrieves a key by digest.
	Get(ctx context.Context, digest string) (*Key, error)

	// Create stores a new key under the digest.
	Create(ctx context.Context, digest string, key *Key) error

	// Delete removes the key under the digest.
	Delete(ctx context.Context, digest string) error

	// TouchLastUsed records a successful authentication time.
	TouchLastUsed(ctx context.Context, digest string, at time.Time) error
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	keys map[string]*Key
	mu   sync.RWMutex
}

// NewMemoryStore creates an in-memory API key store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]*Key)}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, digest string) (*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[digest]
	if !ok {
		return nil, ErrKeyNotFound
	}

	copied := *key
	return &copied, nil
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, digest string, key *Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[digest]; exists {
		return ErrKeyExists
	}

	copied := *key
	s.keys[digest] = &copied
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[digest]; !exists {
		return ErrKeyNotFound
	}

	delete(s.keys, digest)
	return nil
}

// TouchLastUsed implements Store.
func (s *MemoryStore) TouchLastUsed(ctx context.Context, digest string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[digest]
	if !ok {
		return ErrKeyNotFound
	}

	key.LastUsedAt = at
	return nil
}

// Count returns the number of stored keys.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// RedisStore is a Redis-backed Store shared across gateway instances.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed API key store.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "apikey:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, digest string) (*Key, error) {
	data, err := s.client.Get(ctx, s.prefix+digest).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}

	var key Key
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("failed to decode API key: %w", err)
	}

	return &key, nil
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, digest string, key *Key) error {
	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("failed to encode API key: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.prefix+digest, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}
	if !ok {
		return ErrKeyExists
	}

	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, digest string) error {
	deleted, err := s.client.Del(ctx, s.prefix+digest).Result()
	if err != nil {
		return fmt.Errorf("failed to delete API key: %w", err)
	}
	if deleted == 0 {
		return ErrKeyNotFound
	}

	return nil
}

// TouchLastUsed implements Store.
func (s *RedisStore) TouchLastUsed(ctx context.Context, digest string, at time.Time) error {
	key, err := s.Get(ctx, digest)
	if err != nil {
		return err
	}

	key.LastUsedAt = at
	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("failed to encode API key: %w", err)
	}

	return s.client.Set(ctx, s.prefix+digest, data, 0).Err()
}

// Ensure implementations satisfy Store.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
