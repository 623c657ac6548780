package token

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
	// ErrTokenNotFound indicates that no token matches the digest.
	ErrTokenNotFound = errors.New("access token not found")

	// ErrTokenExists indicates a create collision.
	ErrTokenExists = errors.New("access token already exists")
)

// AccessToken is a stored personal access token. The raw value is never
// persisted; the store is indexed by its sha256 digest.
type AccessToken struct {
	// ID is the token's unique identifier.
	ID string `json:"id"`

	// Subject is the user the token acts for.
	Subject string `json:"subject"`

	// Name is a human-readable label.
	Name string `json:"name,omitempty"`

	// ExpiresAt is when the token expires; zero means no expiry.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// Roles granted to the token.
	Roles []string `json:"roles,omitempty"`

	// Permissions granted to the token.
	Permissions []string `json:"permissions,omitempty"`

	// Scopes granted to the token.
	Scopes []string `json:"scopes,omitempty"`

	// LastUsedAt is the last successful authentication time.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// IsExpired returns true if the token has an expiry in the past.
func (t *AccessToken) IsExpired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

// Store persists personal access tokens indexed by digest.
type Store interface {
	// Get retrieves a token by digest.
	Get(ctx context.Context, digest string) (*AccessToken, error)

	// Create stores a new token under the digest.
	Create(ctx context.Context, digest string, token *AccessToken) error

	// Delete removes the token under the digest.
	Delete(ctx context.Context, digest string) error

	// TouchLastUsed records a successful authentication time.
	TouchLastUsed(ctx context.Context, digest string, at time.Time) error
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	tokens map[string]*AccessToken
	mu     sync.RWMutex
}

// NewMemoryStore creates an in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]*AccessToken)}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, digest string) (*AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[digest]
	if !ok {
		return nil, ErrTokenNotFound
	}

	copied := *token
	return &copied, nil
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, digest string, token *AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[digest]; exists {
		return ErrTokenExists
	}

	copied := *token
	s.tokens[digest] = &copied
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[digest]; !exists {
		return ErrTokenNotFound
	}

	delete(s.tokens, digest)
	return nil
}

// TouchLastUsed implements Store.
func (s *MemoryStore) TouchLastUsed(ctx context.Context, digest string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[digest]
	if !ok {
		return ErrTokenNotFound
	}

	token.LastUsedAt = at
	return nil
}

// RedisStore is a Redis-backed Store.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed token store.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "pat:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, digest string) (*AccessToken, error) {
	data, err := s.client.Get(ctx, s.prefix+digest).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	var token AccessToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to decode access token: %w", err)
	}

	return &token, nil
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, digest string, token *AccessToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode access token: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.prefix+digest, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}
	if !ok {
		return ErrTokenExists
	}

	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, digest string) error {
	deleted, err := s.client.Del(ctx, s.prefix+digest).Result()
	if err != nil {
		return fmt.Errorf("failed to delete access token: %w", err)
	}
	if deleted == 0 {
		return ErrTokenNotFound
	}

	return nil
}

// TouchLastUsed implements Store.
func (s *RedisStore) TouchLastUsed(ctx context.Context, digest string, at time.Time) error {
	token, err := s.Get(ctx, digest)
	if err != nil {
		return err
	}

	token.LastUsedAt = at
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode access token: %w", err)
	}

	return s.client.Set(ctx, s.prefix+digest, data, 0).Err()
}

// Ensure implementations satisfy Store.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
