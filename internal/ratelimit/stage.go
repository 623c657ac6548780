package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/shiptrack/gateway/internal/audit"
	"github.com/shiptrack/gateway/internal/observability"
	"github.com/shiptrack/gateway/internal/pipeline"
)

// stageName identifies the stage in logs and metrics.
const stageName = "ratelimit"

// exemptPaths are never rate limited.
var exemptPaths = map[string]struct{}{
	"/healthz": {},
	"/health":  {},
	"/status":  {},
	"/metrics": {},
}

// OverrideFunc returns a per-request limit override, or zero for none.
// It lets an authenticated API key's rate-limit grant replace the route
// limit without the stage knowing about the auth cache.
type OverrideFunc func(c *pipeline.Context) int

// Stage is the admission-control stage. It runs first in the chain so
// abusive traffic is rejected before any expensive work.
type Stage struct {
	limiter  Limiter
	recorder audit.Recorder
	logger   observability.Logger
	metrics  *Metrics
	override OverrideFunc
}

// StageOption is a functional option for the stage.
type StageOption func(*Stage)

// WithStageLogger sets the logger.
func WithStageLogger(logger observability.Logger) StageOption {
	return func(s *Stage) {
		s.logger = logger
	}
}

// WithStageMetrics sets the metrics.
func WithStageMetrics(metrics *Metrics) StageOption {
	return func(s *Stage) {
		s.metrics = metrics
	}
}

// WithRecorder sets the audit recorder for breach records.
func WithRecorder(recorder audit.Recorder) StageOption {
	return func(s *Stage) {
		s.recorder = recorder
	}
}

// WithOverride sets the per-request limit override hook.
func WithOverride(override OverrideFunc) StageOption {
	return func(s *Stage) {
		s.override = override
	}
}

// NewStage creates the rate limiting stage.
func NewStage(limiter Limiter, opts ...StageOption) *Stage {
	s := &Stage{
		limiter:  limiter,
		recorder: audit.NopRecorder{},
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.metrics == nil {
		s.metrics = NewMetrics("gateway")
	}

	return s
}

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return stageName }

// Priority implements pipeline.Stage.
func (s *Stage) Priority() int { return pipeline.PriorityRateLimit }

// ShouldRun implements pipeline.Stage. Health and status paths are
// exempt from rate limiting.
func (s *Stage) ShouldRun(c *pipeline.Context) bool {
	if _, exempt := exemptPaths[c.Request.Path]; exempt {
		return false
	}
	return c.Route != nil && c.Route.RateLimit != nil && c.Route.RateLimit.Limit > 0
}

// Handle implements pipeline.Stage. A store failure fails open:
// availability is prioritized over strict enforcement during
// infrastructure outages.
func (s *Stage) Handle(ctx context.Context, c *pipeline.Context) bool {
	start := time.Now()
	cfg := c.Route.RateLimit

	limit := Limit{
		Requests: cfg.Limit,
		Window:   cfg.Window.Duration(),
		Burst:    cfg.BurstLimit,
	}
	if s.override != nil {
		if o := s.override(c); o > 0 {
			limit.Requests = o
		}
	}

	key := Key(c, cfg)

	result, err := s.limiter.Allow(ctx, key, limit)
	if err != nil {
		s.metrics.RecordStoreError()
		s.metrics.RecordCheck(c.Route.Path, "fail_open", time.Since(start))
		s.logger.Error("rate limit store unreachable, failing open",
			observability.String("key", key),
			observability.Error(err))
		c.SetMeta("rate_limit_fail_open", true)
		c.AppendLog(stageName, "error", "store unreachable, failing open", nil)
		return true
	}

	if !result.Allowed {
		s.metrics.RecordCheck(c.Route.Path, "rejected", time.Since(start))
		s.reject(ctx, c, key, result)
		return false
	}

	s.metrics.RecordCheck(c.Route.Path, "allowed", time.Since(start))
	c.SetMeta("rate_limit_remaining", result.Remaining)
	c.AppendLog(stageName, "debug", "admitted", map[string]interface{}{
		"key":       key,
		"remaining": result.Remaining,
	})
	return true
}

func (s *Stage) reject(ctx context.Context, c *pipeline.Context, key string, result *Result) {
	retryAfter := int(result.RetryAfter.Seconds() + 0.5)
	if retryAfter < 1 {
		retryAfter = 1
	}

	s.logger.Warn("rate limit exceeded",
		observability.String("key", key),
		observability.String("path", c.Request.Path),
		observability.Int("limit", result.Limit))

	c.AppendLog(stageName, "warn", "rate limit exceeded", map[string]interface{}{
		"key":   key,
		"limit": result.Limit,
	})

	resp := pipeline.NewErrorResponse(pipeline.CodeRateLimitExceeded,
		"rate limit exceeded", map[string]interface{}{
			"limit":       result.Limit,
			"remaining":   result.Remaining,
			"reset_time":  result.ResetTime().UTC().Format(time.RFC3339),
			"retry_after": retryAfter,
		})
	resp.Header.Set("Retry-After", strconv.Itoa(retryAfter))
	resp.Header.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	resp.Header.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Terminate(resp)

	s.recorder.Record(ctx, audit.BreachRecord(
		c.Route.Path, c.Request.Method, c.Request.ClientIP(), key, result.Limit))
}

// Ensure Stage implements pipeline.Stage.
var _ pipeline.Stage = (*Stage)(nil)
