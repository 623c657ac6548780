package apikey

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shiptrack/gateway/internal/auth"
	"github.com/shiptrack/gateway/internal/observability"
	"github.com/shiptrack/gateway/internal/pipeline"
)

const (
	providerName = "api_key"
	headerName   = "X-API-Key"
)

// Provider authenticates requests by API key. Successful results are
// cached under the credential for a short TTL; cached entries still
// re-check enablement and expiry before they are trusted.
type Provider struct {
	store   Store
	cache   auth.ResultCache
	logger  observability.Logger
	metrics *auth.Metrics
}

// ProviderOption is a functional option for the provider.
type ProviderOption func(*Provider)

// WithCache sets the auth result cache.
func WithCache(cache auth.ResultCache) ProviderOption {
	return func(p *Provider) {
		p.cache = cache
	}
}

// WithProviderLogger sets the logger.
func WithProviderLogger(logger observability.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithProviderMetrics sets the metrics.
func WithProviderMetrics(metrics *auth.Metrics) ProviderOption {
	return func(p *Provider) {
		p.metrics = metrics
	}
}

// NewProvider creates an API key provider backed by the given store.
func NewProvider(store Store, opts ...ProviderOption) *Provider {
	p := &Provider{
		store:  store,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.metrics == nil {
		p.metrics = auth.NewMetrics("gateway")
	}

	return p
}

// Name implements auth.Provider.
func (p *Provider) Name() string { return providerName }

// Authenticate implements auth.Provider.
func (p *Provider) Authenticate(ctx context.Context, r *pipeline.Request) (*pipeline.Principal, error) {
	raw := r.Header.Get(headerName)
	if raw == "" {
		return nil, auth.ErrNoCredentials
	}

	digest := Digest(raw)

	if p.cache != nil {
		if cached, ok := p.cache.Get(ctx, raw); ok {
			p.metrics.RecordCacheHit()
			if principal, err := p.revalidate(ctx, raw, digest, cached.Principal); err == nil {
				return principal, nil
			}
			p.cache.Invalidate(ctx, raw)
		} else {
			p.metrics.RecordCacheMiss()
		}
	}

	key, err := p.store.Get(ctx, digest)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, &auth.UnavailableError{Provider: providerName, Cause: err}
	}

	principal, err := p.verify(raw, key)
	if err != nil {
		return nil, err
	}

	if err := p.store.TouchLastUsed(ctx, digest, time.Now()); err != nil {
		p.logger.Warn("failed to update API key last-used time",
			observability.String("key_id", key.ID),
			observability.Error(err))
	}

	if p.cache != nil {
		p.cache.Put(ctx, raw, &auth.CachedResult{
			Principal: principal,
			Provider:  providerName,
			CachedAt:  time.Now(),
		})
	}

	return principal, nil
}

// revalidate re-checks a cached principal against the store's current
// view of the key. The cache never extends a key's life past a disable
// or expiry.
func (p *Provider) revalidate(ctx context.Context, raw, digest string, principal *pipeline.Principal) (*pipeline.Principal, error) {
	key, err := p.store.Get(ctx, digest)
	if err != nil {
		return nil, err
	}
	if !key.Enabled {
		return nil, auth.ErrKeyDisabled
	}
	if key.IsExpired() {
		return nil, auth.ErrKeyExpired
	}
	return principal, nil
}

func (p *Provider) verify(raw string, key *Key) (*pipeline.Principal, error) {
	switch key.Scheme {
	case SchemeBcrypt:
		if err := bcrypt.CompareHashAndPassword([]byte(key.Hash), []byte(raw)); err != nil {
			return nil, auth.ErrInvalidCredentials
		}
	default:
		if subtle.ConstantTimeCompare([]byte(key.Hash), []byte(Digest(raw))) != 1 {
			return nil, auth.ErrInvalidCredentials
		}
	}

	if !key.Enabled {
		return nil, auth.ErrKeyDisabled
	}
	if key.IsExpired() {
		return nil, auth.ErrKeyExpired
	}

	principal := &pipeline.Principal{
		Subject:           key.ID,
		Name:              key.Name,
		Provider:          providerName,
		Roles:             key.Roles,
		Permissions:       key.Permissions,
		Scopes:            key.Scopes,
		RateLimitOverride: key.RateLimitOverride,
	}
	if !key.ExpiresAt.IsZero() {
		principal.ExpiresAt = key.ExpiresAt
	}

	return principal, nil
}

// Ensure Provider implements auth.Provider.
var _ auth.Provider = (*Provider)(nil)
