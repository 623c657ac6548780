package auth

import (
	"context"

	"github.com/shiptrack/gateway/internal/authz"
	"github.com/shiptrack/gateway/internal/observability"
	"github.com/shiptrack/gateway/internal/pipeline"
)

const stageName = "auth"

// Stage is the authentication stage. It resolves the request's
// credentials through the provider chain and, when the route asks for
// it, runs the authorization check against the resulting principal.
type Stage struct {
	chain      *Chain
	authorizer *authz.Authorizer
	logger     observability.Logger
}

// StageOption is a functional option for the stage.
type StageOption func(*Stage)

// WithStageLogger sets the logger.
func WithStageLogger(logger observability.Logger) StageOption {
	return func(s *Stage) {
		s.logger = logger
	}
}

// WithAuthorizer sets the authorizer.
func WithAuthorizer(authorizer *authz.Authorizer) StageOption {
	return func(s *Stage) {
		s.authorizer = authorizer
	}
}

// NewStage creates the authentication stage.
func NewStage(chain *Chain, opts ...StageOption) *Stage {
	s := &Stage{
		chain:  chain,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.authorizer == nil {
		s.authorizer = authz.New()
	}

	return s
}

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return stageName }

// Priority implements pipeline.Stage.
func (s *Stage) Priority() int { return pipeline.PriorityAuth }

// ShouldRun implements pipeline.Stage.
func (s *Stage) ShouldRun(c *pipeline.Context) bool {
	if c.Route == nil || c.Route.Auth == nil {
		return false
	}
	return c.Route.Auth.Required || c.Route.Auth.RequiresAuthorization()
}

// Handle implements pipeline.Stage. Infrastructure failures fail
// closed: an unreachable auth backend rejects the request rather than
// letting unverified traffic through.
func (s *Stage) Handle(ctx context.Context, c *pipeline.Context) bool {
	cfg := c.Route.Auth

	result, err := s.chain.Authenticate(ctx, c.Request, cfg.Providers)
	if err != nil {
		if IsUnavailable(err) {
			s.logger.Error("authentication backend unavailable",
				observability.String("path", c.Request.Path),
				observability.Error(err))
			c.AppendLog(stageName, "error", "auth backend unavailable", nil)
			c.Terminate(pipeline.NewErrorResponse(pipeline.CodeAuthServiceError,
				"authentication service unavailable", nil))
			return false
		}

		c.AppendLog(stageName, "warn", "authentication failed", map[string]interface{}{
			"providers_attempted": result.Attempted,
		})
		c.Terminate(pipeline.NewErrorResponse(pipeline.CodeAuthenticationRequired,
			"authentication required", map[string]interface{}{
				"providers_attempted": result.Attempted,
			}))
		return false
	}

	c.SetPrincipal(result.Principal)
	c.SetMeta("auth_provider", result.Provider)
	c.SetMeta("auth_subject", result.Principal.Subject)
	c.AppendLog(stageName, "debug", "authenticated", map[string]interface{}{
		"provider": result.Provider,
		"subject":  result.Principal.Subject,
	})

	if !cfg.RequiresAuthorization() {
		return true
	}

	decision := s.authorizer.Authorize(ctx, result.Principal, cfg)
	if !decision.Allowed {
		c.AppendLog(stageName, "warn", "authorization denied", map[string]interface{}{
			"requirement": decision.Requirement,
			"missing":     decision.Missing,
		})
		c.Terminate(pipeline.NewErrorResponse(pipeline.CodeAuthorizationFailed,
			"insufficient "+decision.Requirement, map[string]interface{}{
				"requirement": decision.Requirement,
				"missing":     decision.Missing,
			}))
		return false
	}

	c.SetMeta("authz_decision", "allowed")
	return true
}

// Ensure Stage implements pipeline.Stage.
var _ pipeline.Stage = (*Stage)(nil)
