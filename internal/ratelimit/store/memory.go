package store

import (
	"context"
	"sync"
	"time"
)

// memoryEntry holds a counter and its expiration time.
type memoryEntry struct {
	value     int64
	expiresAt time.Time
}

// MemoryStore is an in-memory implementation of the Store interface.
type MemoryStore struct {
	entries map[string]*memoryEntry
	mu      sync.Mutex
}

// NewMemoryStore creates a new in-memory rate limit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
	}
}

// Get retrieves the counter value for the given key.
func (s *MemoryStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || s.expired(entry) {
		delete(s.entries, key)
		return 0, &ErrKeyNotFound{Key: key}
	}
	return entry.value, nil
}

// Set sets the counter value for the given key with an expiration.
func (s *MemoryStore) Set(ctx context.Context, key string, value int64, expiration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &memoryEntry{
		value:     value,
		expiresAt: expiryTime(expiration),
	}
	return nil
}

// IncrementWithExpiry increments the counter, setting the expiration if
// the key is new or had expired.
func (s *MemoryStore) IncrementWithExpiry(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || s.expired(entry) {
		entry = &memoryEntry{expiresAt: expiryTime(expiration)}
		s.entries[key] = entry
	}
	entry.value += delta
	return entry.value, nil
}

// Delete removes the key from the store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) expired(entry *memoryEntry) bool {
	return !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)
}

func expiryTime(expiration time.Duration) time.Time {
	if expiration <= 0 {
		return time.Time{}
	}
	return time.Now().Add(expiration)
}
