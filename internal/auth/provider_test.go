package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiptrack/gateway/internal/pipeline"
)

// stubProvider is a scriptable provider for chain tests.
type stubProvider struct {
	name      string
	principal *pipeline.Principal
	err       error
	calls     int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Authenticate(ctx context.Context, r *pipeline.Request) (*pipeline.Principal, error) {
	s.calls++
	return s.principal, s.err
}

func TestChain_ProviderOrdering(t *testing.T) {
	first := &stubProvider{name: "api_key", err: ErrNoCredentials}
	second := &stubProvider{name: "jwt", principal: &pipeline.Principal{Subject: "user-1", Provider: "jwt"}}
	third := &stubProvider{name: "bearer", principal: &pipeline.Principal{Subject: "other"}}

	chain := NewChain([]Provider{first, second, third})
	result, err := chain.Authenticate(context.Background(), &pipeline.Request{}, []string{"api_key", "jwt", "bearer"})
	require.NoError(t, err)

	// First success wins; later providers are never invoked.
	assert.Equal(t, "user-1", result.Principal.Subject)
	assert.Equal(t, "jwt", result.Provider)
	assert.Equal(t, []string{"api_key", "jwt"}, result.Attempted)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 0, third.calls)
}

func TestChain_AllProvidersFail(t *testing.T) {
	chain := NewChain([]Provider{
		&stubProvider{name: "api_key", err: ErrInvalidCredentials},
		&stubProvider{name: "jwt", err: ErrInvalidToken},
	})

	result, err := chain.Authenticate(context.Background(), &pipeline.Request{}, []string{"api_key", "jwt"})
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Nil(t, result.Principal)
	assert.Equal(t, []string{"api_key", "jwt"}, result.Attempted)
}

func TestChain_UnavailableAborts(t *testing.T) {
	unavailable := &stubProvider{
		name: "api_key",
		err:  &UnavailableError{Provider: "api_key", Cause: errors.New("redis down")},
	}
	next := &stubProvider{name: "jwt", principal: &pipeline.Principal{Subject: "user-1"}}

	chain := NewChain([]Provider{unavailable, next})
	_, err := chain.Authenticate(context.Background(), &pipeline.Request{}, []string{"api_key", "jwt"})

	// Infrastructure failure aborts the chain so the caller fails
	// closed instead of masking the outage with a 401.
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, 0, next.calls)
}

func TestChain_UnexpectedErrorBecomesUnavailable(t *testing.T) {
	chain := NewChain([]Provider{
		&stubProvider{name: "jwt", err: errors.New("nil pointer somewhere")},
	})

	_, err := chain.Authenticate(context.Background(), &pipeline.Request{}, []string{"jwt"})
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestChain_SkipsUnregisteredProvider(t *testing.T) {
	known := &stubProvider{name: "jwt", principal: &pipeline.Principal{Subject: "user-1"}}

	chain := NewChain([]Provider{known})
	result, err := chain.Authenticate(context.Background(), &pipeline.Request{}, []string{"oidc", "jwt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"jwt"}, result.Attempted)
	assert.Equal(t, "user-1", result.Principal.Subject)
}
