package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/shiptrack/gateway/internal/auth"
	"github.com/shiptrack/gateway/internal/observability"
	"github.com/shiptrack/gateway/internal/pipeline"
)

const providerName = "bearer"

// OpaqueTokenLength is the fixed length of personal access tokens.
// Bearer values of any other length are handed to the fallback
// verifier.
const OpaqueTokenLength = 40

// Verifier validates a non-opaque bearer credential, typically a JWT.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*pipeline.Principal, error)
}

// Provider authenticates opaque personal access tokens.
type Provider struct {
	store    Store
	fallback Verifier
	logger   observability.Logger
}

// ProviderOption is a functional option for the provider.
type ProviderOption func(*Provider)

// WithFallback sets the verifier for bearer values that are not opaque
// tokens.
func WithFallback(v Verifier) ProviderOption {
	return func(p *Provider) {
		p.fallback = v
	}
}

// WithProviderLogger sets the logger.
func WithProviderLogger(logger observability.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider creates a bearer token provider backed by the given
// store.
func NewProvider(store Store, opts ...ProviderOption) *Provider {
	p := &Provider{
		store:  store,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name implements auth.Provider.
func (p *Provider) Name() string { return providerName }

// Authenticate implements auth.Provider.
func (p *Provider) Authenticate(ctx context.Context, r *pipeline.Request) (*pipeline.Principal, error) {
	raw := auth.BearerToken(r)
	if raw == "" {
		return nil, auth.ErrNoCredentials
	}

	if len(raw) != OpaqueTokenLength {
		if p.fallback != nil {
			return p.fallback.Verify(ctx, raw)
		}
		return nil, auth.ErrInvalidToken
	}

	digest := Digest(raw)

	token, err := p.store.Get(ctx, digest)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, &auth.UnavailableError{Provider: providerName, Cause: err}
	}

	if token.IsExpired() {
		return nil, auth.ErrTokenExpired
	}

	if err := p.store.TouchLastUsed(ctx, digest, time.Now()); err != nil {
		p.logger.Warn("failed to update token last-used time",
			observability.String("token_id", token.ID),
			observability.Error(err))
	}

	principal := &pipeline.Principal{
		Subject:     token.Subject,
		Name:        token.Name,
		Provider:    providerName,
		Roles:       token.Roles,
		Permissions: token.Permissions,
		Scopes:      token.Scopes,
	}
	if !token.ExpiresAt.IsZero() {
		principal.ExpiresAt = token.ExpiresAt
	}

	return principal, nil
}

// Digest returns the sha256 hex digest of a raw token value.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Ensure Provider implements auth.Provider.
var _ auth.Provider = (*Provider)(nil)
