package authz

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shiptrack/gateway/internal/config"
	"github.com/shiptrack/gateway/internal/observability"
	"github.com/shiptrack/gateway/internal/pipeline"
)

const authzTracerName = "gateway/authz"

// Decision is the outcome of an authorization check.
type Decision struct {
	// Allowed reports whether the principal satisfies the route's
	// requirements.
	Allowed bool

	// Requirement names the requirement class that failed:
	// "permission", "role", or "scope".
	Requirement string

	// Missing names the specific unmet requirement.
	Missing string
}

// Authorizer evaluates route authorization requirements against a
// principal. Permissions must all be held; any accepted role or any
// accepted scope suffices.
type Authorizer struct {
	logger  observability.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option is a functional option for the authorizer.
type Option func(*Authorizer)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(a *Authorizer) {
		a.logger = logger
	}
}

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(a *Authorizer) {
		a.metrics = metrics
	}
}

// New creates an authorizer.
func New(opts ...Option) *Authorizer {
	a := &Authorizer{
		logger: observability.NopLogger(),
		tracer: otel.Tracer(authzTracerName),
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.metrics == nil {
		a.metrics = NewMetrics("gateway")
	}

	return a
}

// Authorize checks the principal against the route's auth requirements.
func (a *Authorizer) Authorize(ctx context.Context, principal *pipeline.Principal, cfg *config.AuthConfig) Decision {
	start := time.Now()

	_, span := a.tracer.Start(ctx, "authz.decide",
		trace.WithAttributes(attribute.String("authz.subject", principal.Subject)))
	defer span.End()

	decision := a.decide(principal, cfg)

	outcome := "allowed"
	if !decision.Allowed {
		outcome = "denied"
		span.SetAttributes(
			attribute.String("authz.requirement", decision.Requirement),
			attribute.String("authz.missing", decision.Missing))
		a.logger.Info("authorization denied",
			observability.String("subject", principal.Subject),
			observability.String("requirement", decision.Requirement),
			observability.String("missing", decision.Missing))
	}
	a.metrics.RecordDecision(outcome, time.Since(start))

	return decision
}

func (a *Authorizer) decide(principal *pipeline.Principal, cfg *config.AuthConfig) Decision {
	for _, perm := range cfg.Permissions {
		if !principal.HasPermission(perm) {
			return Decision{Requirement: "permission", Missing: perm}
		}
	}

	if len(cfg.Roles) > 0 && !principal.HasAnyRole(cfg.Roles...) {
		return Decision{Requirement: "role", Missing: cfg.Roles[0]}
	}

	if len(cfg.Scopes) > 0 && !principal.HasAnyScope(cfg.Scopes...) {
		return Decision{Requirement: "scope", Missing: cfg.Scopes[0]}
	}

	return Decision{Allowed: true}
}
