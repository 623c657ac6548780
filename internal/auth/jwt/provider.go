package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/shiptrack/gateway/internal/auth"
	"github.com/shiptrack/gateway/internal/observability"
	"github.com/shiptrack/gateway/internal/pipeline"
)

const providerName = "jwt"

// Config holds the JWT verification settings.
type Config struct {
	// Secret is the shared HS256 signing secret.
	Secret string

	// Issuer, when set, must match the iss claim.
	Issuer string

	// ClockSkew is tolerated when checking time claims.
	ClockSkew time.Duration
}

// Provider authenticates HS256-signed JWTs.
type Provider struct {
	config Config
	logger observability.Logger
}

// ProviderOption is a functional option for the provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets the logger.
func WithProviderLogger(logger observability.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider creates a JWT provider.
func NewProvider(config Config, opts ...ProviderOption) (*Provider, error) {
	if config.Secret == "" {
		return nil, fmt.Errorf("jwt: signing secret is required")
	}

	p := &Provider{
		config: config,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Name implements auth.Provider.
func (p *Provider) Name() string { return providerName }

// Authenticate implements auth.Provider.
func (p *Provider) Authenticate(ctx context.Context, r *pipeline.Request) (*pipeline.Principal, error) {
	raw := auth.BearerToken(r)
	if raw == "" {
		return nil, auth.ErrNoCredentials
	}

	return p.Verify(ctx, raw)
}

// Verify parses and validates a raw token and maps its claims onto a
// principal.
func (p *Provider) Verify(ctx context.Context, raw string) (*pipeline.Principal, error) {
	options := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, []byte(p.config.Secret)),
		jwt.WithValidate(true),
		jwt.WithContext(ctx),
	}
	if p.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(p.config.Issuer))
	}
	if p.config.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(p.config.ClockSkew))
	}

	token, err := jwt.Parse([]byte(raw), options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, auth.ErrTokenExpired
		}
		p.logger.Debug("token rejected", observability.Error(err))
		return nil, auth.ErrInvalidToken
	}

	if token.Subject() == "" {
		return nil, auth.ErrInvalidToken
	}

	principal := &pipeline.Principal{
		Subject:     token.Subject(),
		Provider:    providerName,
		ExpiresAt:   token.Expiration(),
		Roles:       stringsClaim(token, "roles"),
		Permissions: stringsClaim(token, "permissions"),
		Scopes:      scopeClaim(token),
	}
	if name, ok := token.Get("name"); ok {
		if s, ok := name.(string); ok {
			principal.Name = s
		}
	}

	return principal, nil
}

// stringsClaim reads a claim that may be a string list or a single
// string.
func stringsClaim(token jwt.Token, claim string) []string {
	value, ok := token.Get(claim)
	if !ok {
		return nil
	}

	switch v := value.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		return []string{v}
	default:
		return nil
	}
}

// scopeClaim reads the OAuth-style space-delimited scope claim, falling
// back to a scopes list claim.
func scopeClaim(token jwt.Token) []string {
	if value, ok := token.Get("scope"); ok {
		if s, ok := value.(string); ok && s != "" {
			return strings.Fields(s)
		}
	}
	return stringsClaim(token, "scopes")
}

// Ensure Provider implements auth.Provider.
var _ auth.Provider = (*Provider)(nil)
