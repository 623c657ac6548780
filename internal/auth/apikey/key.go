package apikey

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Hash scheme constants.
const (
	SchemeSHA256 = "sha256"
	SchemeBcrypt = "bcrypt"
)

// Key is a stored API key. The raw key value is never persisted; Hash
// holds its digest under Scheme.
type Key struct {
	// ID is the unique identifier for the key.
	ID string `json:"id"`

	// Name is a human-readable label.
	Name string `json:"name,omitempty"`

	// Hash is the digest of the key value.
	Hash string `json:"hash"`

	// Scheme is the hashing scheme, sha256 or bcrypt.
	Scheme string `json:"scheme"`

	// Enabled gates the key. Disabled keys are rejected.
	Enabled bool `json:"enabled"`

	// ExpiresAt is when the key expires; zero means no expiry.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// Roles granted to the key.
	Roles []string `json:"roles,omitempty"`

	// Permissions granted to the key.
	Permissions []string `json:"permissions,omitempty"`

	// Scopes granted to the key.
	Scopes []string `json:"scopes,omitempty"`

	// RateLimitOverride replaces the route's request limit when
	// positive.
	RateLimitOverride int `json:"rate_limit_override,omitempty"`

	// LastUsedAt is the last successful authentication time.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`

	// Metadata carries additional key attributes.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IsExpired returns true if the key has an expiry in the past.
func (k *Key) IsExpired() bool {
	return !k.ExpiresAt.IsZero() && time.Now().After(k.ExpiresAt)
}

// Digest returns the sha256 hex digest of a raw key value. It is the
// store lookup index for both schemes.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
