package auth

import (
	"context"

	"github.com/shiptrack/gateway/internal/pipeline"
)

// OAuth2Provider is a declared extension point. Routes may list it, but
// until a token introspection backend is wired it rejects every
// credential.
type OAuth2Provider struct{}

// NewOAuth2Provider creates the placeholder oauth2 provider.
func NewOAuth2Provider() *OAuth2Provider {
	return &OAuth2Provider{}
}

// Name implements Provider.
func (p *OAuth2Provider) Name() string { return "oauth2" }

// Authenticate implements Provider.
func (p *OAuth2Provider) Authenticate(ctx context.Context, r *pipeline.Request) (*pipeline.Principal, error) {
	return nil, ErrNotImplemented
}

// Ensure OAuth2Provider implements Provider.
var _ Provider = (*OAuth2Provider)(nil)
