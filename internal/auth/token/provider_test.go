package token

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiptrack/gateway/internal/auth"
	"github.com/shiptrack/gateway/internal/pipeline"
)

// rawToken is exactly OpaqueTokenLength characters.
var rawToken = strings.Repeat("a", OpaqueTokenLength)

func requestWithBearer(raw string) *pipeline.Request {
	r := &pipeline.Request{Header: make(http.Header), Query: make(url.Values)}
	r.Header.Set("Authorization", "Bearer "+raw)
	return r
}

func seedToken(t *testing.T, store Store, raw string, mutate func(*AccessToken)) {
	t.Helper()

	token := &AccessToken{
		ID:      "tok-1",
		Subject: "user-1",
		Name:    "ci pipeline",
		Scopes:  []string{"api"},
	}
	if mutate != nil {
		mutate(token)
	}
	require.NoError(t, store.Create(context.Background(), Digest(raw), token))
}

func TestProvider_Authenticate(t *testing.T) {
	store := NewMemoryStore()
	seedToken(t, store, rawToken, nil)
	provider := NewProvider(store)

	principal, err := provider.Authenticate(context.Background(), requestWithBearer(rawToken))
	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.Subject)
	assert.Equal(t, "ci pipeline", principal.Name)
	assert.Equal(t, "bearer", principal.Provider)
	assert.Equal(t, []string{"api"}, principal.Scopes)

	stored, err := store.Get(context.Background(), Digest(rawToken))
	require.NoError(t, err)
	assert.False(t, stored.LastUsedAt.IsZero())
}

func TestProvider_NoCredentials(t *testing.T) {
	provider := NewProvider(NewMemoryStore())

	r := &pipeline.Request{Header: make(http.Header), Query: make(url.Values)}
	_, err := provider.Authenticate(context.Background(), r)
	assert.ErrorIs(t, err, auth.ErrNoCredentials)
}

func TestProvider_UnknownToken(t *testing.T) {
	provider := NewProvider(NewMemoryStore())

	_, err := provider.Authenticate(context.Background(), requestWithBearer(rawToken))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestProvider_ExpiredToken(t *testing.T) {
	store := NewMemoryStore()
	seedToken(t, store, rawToken, func(tok *AccessToken) {
		tok.ExpiresAt = time.Now().Add(-time.Hour)
	})
	provider := NewProvider(store)

	_, err := provider.Authenticate(context.Background(), requestWithBearer(rawToken))
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

// fallbackVerifier records delegation of non-opaque bearer values.
type fallbackVerifier struct {
	calls int
}

func (f *fallbackVerifier) Verify(ctx context.Context, raw string) (*pipeline.Principal, error) {
	f.calls++
	return &pipeline.Principal{Subject: "from-jwt", Provider: "jwt"}, nil
}

func TestProvider_NonOpaqueLengthDelegates(t *testing.T) {
	fallback := &fallbackVerifier{}
	provider := NewProvider(NewMemoryStore(), WithFallback(fallback))

	principal, err := provider.Authenticate(context.Background(),
		requestWithBearer("eyJhbGciOiJIUzI1NiJ9.payload.signature"))
	require.NoError(t, err)
	assert.Equal(t, "from-jwt", principal.Subject)
	assert.Equal(t, 1, fallback.calls)
}

func TestProvider_NonOpaqueLengthWithoutFallback(t *testing.T) {
	provider := NewProvider(NewMemoryStore())

	_, err := provider.Authenticate(context.Background(), requestWithBearer("short"))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

// brokenStore simulates an unreachable backend.
type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, digest string) (*AccessToken, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Create(ctx context.Context, digest string, token *AccessToken) error {
	return errors.New("connection refused")
}

func (brokenStore) Delete(ctx context.Context, digest string) error {
	return errors.New("connection refused")
}

func (brokenStore) TouchLastUsed(ctx context.Context, digest string, at time.Time) error {
	return errors.New("connection refused")
}

func TestProvider_StoreFailureIsUnavailable(t *testing.T) {
	provider := NewProvider(brokenStore{})

	_, err := provider.Authenticate(context.Background(), requestWithBearer(rawToken))
	require.Error(t, err)
	assert.True(t, auth.IsUnavailable(err))
}
