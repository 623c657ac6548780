package auth

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shiptrack/gateway/internal/observability"
	"github.com/shiptrack/gateway/internal/pipeline"
)

const chainTracerName = "gateway/auth"

// Provider authenticates one credential type.
type Provider interface {
	// Name returns the provider name used in route configuration.
	Name() string

	// Authenticate resolves the request's credentials into a principal.
	// It returns ErrNoCredentials when no credentials of this
	// provider's type are present, a credential error when they are
	// present but invalid, and an UnavailableError when the backing
	// infrastructure failed.
	Authenticate(ctx context.Context, r *pipeline.Request) (*pipeline.Principal, error)
}

// ChainResult is the outcome of a chain authentication attempt.
type ChainResult struct {
	// Principal is the authenticated identity, nil on failure.
	Principal *pipeline.Principal

	// Provider is the name of the provider that succeeded.
	Provider string

	// Attempted lists the providers tried, in order.
	Attempted []string
}

// Chain resolves credentials by trying providers in the order a route
// configures them. The first provider to produce a principal wins.
type Chain struct {
	providers map[string]Provider
	logger    observability.Logger
	metrics   *Metrics
	tracer    trace.Tracer
}

// ChainOption is a functional option for the chain.
type ChainOption func(*Chain)

// WithChainLogger sets the logger.
func WithChainLogger(logger observability.Logger) ChainOption {
	return func(c *Chain) {
		c.logger = logger
	}
}

// WithChainMetrics sets the metrics.
func WithChainMetrics(metrics *Metrics) ChainOption {
	return func(c *Chain) {
		c.metrics = metrics
	}
}

// NewChain creates an authentication chain over the given providers.
func NewChain(providers []Provider, opts ...ChainOption) *Chain {
	c := &Chain{
		providers: make(map[string]Provider, len(providers)),
		logger:    observability.NopLogger(),
		tracer:    otel.Tracer(chainTracerName),
	}

	for _, p := range providers {
		c.providers[p.Name()] = p
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.metrics == nil {
		c.metrics = NewMetrics("gateway")
	}

	return c
}

// Authenticate tries the named providers in order and returns the first
// successful result. An infrastructure fault aborts the chain
// immediately so the caller can fail closed.
func (c *Chain) Authenticate(ctx context.Context, r *pipeline.Request, names []string) (*ChainResult, error) {
	ctx, span := c.tracer.Start(ctx, "auth.chain",
		trace.WithAttributes(attribute.StringSlice("auth.providers", names)))
	defer span.End()

	result := &ChainResult{}

	for _, name := range names {
		provider, ok := c.providers[name]
		if !ok {
			c.logger.Warn("route references unregistered auth provider",
				observability.String("provider", name))
			continue
		}

		result.Attempted = append(result.Attempted, name)

		start := time.Now()
		principal, err := provider.Authenticate(ctx, r)
		if err == nil {
			c.metrics.RecordAttempt(name, "success", time.Since(start))
			span.SetAttributes(attribute.String("auth.provider", name))
			result.Principal = principal
			result.Provider = name
			return result, nil
		}

		if IsUnavailable(err) {
			c.metrics.RecordAttempt(name, "unavailable", time.Since(start))
			c.logger.Error("auth provider unavailable",
				observability.String("provider", name),
				observability.Error(err))
			return result, err
		}

		if !IsCredentialError(err) {
			c.metrics.RecordAttempt(name, "error", time.Since(start))
			c.logger.Error("auth provider internal error",
				observability.String("provider", name),
				observability.Error(err))
			return result, &UnavailableError{Provider: name, Cause: err}
		}

		c.metrics.RecordAttempt(name, "rejected", time.Since(start))
		c.logger.Debug("auth provider rejected credentials",
			observability.String("provider", name),
			observability.Error(err))
	}

	return result, ErrAuthenticationFailed
}
