package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shiptrack/gateway/internal/observability"
)

// pipelineTracerName is the OpenTelemetry tracer name for chain execution.
const pipelineTracerName = "gateway/pipeline"

// Stage priorities. Lower runs first. The monitor wraps the whole chain
// rather than occupying a slot of its own.
const (
	PriorityRateLimit = 10
	PriorityAuth      = 20
	PriorityValidate  = 30
	PriorityTransform = 40
)

// Stage is one unit of cross-cutting logic in the chain.
type Stage interface {
	// Name identifies the stage in logs and metrics.
	Name() string

	// Priority orders the stage within the chain; lower runs first.
	Priority() int

	// ShouldRun reports whether the stage applies to this request.
	ShouldRun(c *Context) bool

	// Handle processes the request. Returning false stops the chain.
	// A stage signals rejection by setting a terminal response on the
	// Context, not by returning an error.
	Handle(ctx context.Context, c *Context) bool
}

// Chain drives an ordered list of stages over a shared Context.
type Chain struct {
	stages []Stage
	logger observability.Logger
}

// ChainOption is a functional option for the chain.
type ChainOption func(*Chain)

// WithChainLogger sets the logger.
func WithChainLogger(logger observability.Logger) ChainOption {
	return func(ch *Chain) {
		ch.logger = logger
	}
}

// NewChain creates a chain from the given stages, ordered by ascending
// priority.
func NewChain(stages []Stage, opts ...ChainOption) *Chain {
	sorted := make([]Stage, len(stages))
	copy(sorted, stages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	ch := &Chain{
		stages: sorted,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(ch)
	}

	return ch
}

// Stages returns the ordered stage list.
func (ch *Chain) Stages() []Stage {
	return ch.stages
}

// Execute runs the chain over the Context. Execution stops as soon as a
// stage sets a terminal response or returns false. A panic inside a
// stage is caught at the stage boundary and surfaced as a generic
// 503-class response; internal detail is logged, never leaked to the
// caller.
func (ch *Chain) Execute(ctx context.Context, c *Context) {
	ctx, span := otel.Tracer(pipelineTracerName).Start(ctx, "pipeline.Execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.path", c.Request.Path),
		),
	)
	defer span.End()

	for _, stage := range ch.stages {
		if c.Terminated() {
			break
		}
		if !stage.ShouldRun(c) {
			continue
		}

		if !ch.runStage(ctx, stage, c) {
			break
		}
	}

	if resp := c.Response(); resp != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.Status))
	}
}

// runStage invokes one stage with panic recovery at the boundary.
func (ch *Chain) runStage(ctx context.Context, stage Stage, c *Context) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			ch.logger.Error("stage panicked",
				observability.String("stage", stage.Name()),
				observability.String("request_id", c.RequestID()),
				observability.Any("panic", r),
				observability.String("stack", string(debug.Stack())),
			)
			c.AppendLog(stage.Name(), "error", fmt.Sprintf("internal fault: %v", r), nil)
			code := CodeAuthServiceError
			if stage.Name() == "validate" {
				code = CodeValidationServiceError
			}
			c.Terminate(NewErrorResponse(code, "internal error", nil))
			cont = false
		}
	}()

	return stage.Handle(ctx, c)
}
