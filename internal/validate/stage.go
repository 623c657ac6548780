package validate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shiptrack/gateway/internal/config"
	"github.com/shiptrack/gateway/internal/observability"
	"github.com/shiptrack/gateway/internal/pipeline"
)

const stageName = "validate"

// MetaSanitizedBody is the context metadata key carrying the sanitized
// request body for downstream stages.
const MetaSanitizedBody = "sanitized_body"

// bodylessMethods are exempt from content-type checks when they carry
// no body.
var bodylessMethods = map[string]struct{}{
	"GET":    {},
	"DELETE": {},
	"HEAD":   {},
}

// Stage is the request validation stage.
type Stage struct {
	logger  observability.Logger
	metrics *Metrics
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

// NewStage creates the validation stage.
func NewStage(opts ...StageOption) *Stage {
	s := &Stage{
		logger: observability.NopLogger(),
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
func (s *Stage) Priority() int { return pipeline.PriorityValidate }

// ShouldRun implements pipeline.Stage.
func (s *Stage) ShouldRun(c *pipeline.Context) bool {
	return c.Route != nil && c.Route.Validation != nil && c.Route.Validation.Enabled
}

// Handle implements pipeline.Stage. All checks run and their violations
// are reported together so clients can fix a request in one pass.
func (s *Stage) Handle(ctx context.Context, c *pipeline.Context) bool {
	start := time.Now()
	cfg := c.Route.Validation

	violations := s.check(c, cfg)
	if len(violations) > 0 {
		s.metrics.RecordValidation(c.Route.Path, "rejected", time.Since(start))
		s.logger.Info("request validation failed",
			observability.String("path", c.Request.Path),
			observability.Int("violations", len(violations)))
		c.AppendLog(stageName, "warn", "validation failed", map[string]interface{}{
			"violations": len(violations),
		})
		c.Terminate(pipeline.NewErrorResponse(pipeline.CodeValidationError,
			"request validation failed", map[string]interface{}{
				"violations": violations,
			}))
		return false
	}

	if body := c.Request.ParsedBody(); body != nil {
		c.SetMeta(MetaSanitizedBody, Sanitize(body))
	}

	s.metrics.RecordValidation(c.Route.Path, "passed", time.Since(start))
	c.AppendLog(stageName, "debug", "validation passed", nil)
	return true
}

func (s *Stage) check(c *pipeline.Context, cfg *config.ValidationConfig) []Violation {
	var violations []Violation

	if cfg.MaxRequestSize > 0 && c.Request.ContentLength > cfg.MaxRequestSize {
		violations = append(violations, Violation{
			Field: "request",
			Rule:  "max_request_size",
			Message: fmt.Sprintf("request size %d exceeds limit %d",
				c.Request.ContentLength, cfg.MaxRequestSize),
		})
	}

	violations = append(violations, s.checkContentType(c, cfg)...)
	violations = append(violations, s.checkHeaders(c, cfg)...)
	violations = append(violations, s.checkFields(c, cfg)...)

	return violations
}

func (s *Stage) checkContentType(c *pipeline.Context, cfg *config.ValidationConfig) []Violation {
	if len(cfg.AllowedContentTypes) == 0 {
		return nil
	}

	if _, bodyless := bodylessMethods[c.Request.Method]; bodyless && len(c.Request.Body) == 0 {
		return nil
	}

	for _, allowed := range cfg.AllowedContentTypes {
		if strings.EqualFold(c.Request.ContentType, allowed) {
			return nil
		}
	}

	return []Violation{{
		Field:   "request",
		Rule:    "content_type",
		Message: fmt.Sprintf("content type %q is not allowed", c.Request.ContentType),
	}}
}

func (s *Stage) checkHeaders(c *pipeline.Context, cfg *config.ValidationConfig) []Violation {
	var violations []Violation

	for _, rule := range cfg.RequiredHeaders {
		value := c.Request.Header.Get(rule.Name)
		if value == "" {
			violations = append(violations, Violation{
				Field:   rule.Name,
				Rule:    "required_header",
				Message: "header is required",
			})
			continue
		}

		if !CheckHeaderFormat(value, rule.Format) {
			violations = append(violations, Violation{
				Field:   rule.Name,
				Rule:    "header_format:" + rule.Format,
				Message: fmt.Sprintf("header must be a valid %s", rule.Format),
			})
		}
	}

	return violations
}

func (s *Stage) checkFields(c *pipeline.Context, cfg *config.ValidationConfig) []Violation {
	if len(cfg.RequiredFields) == 0 && len(cfg.Rules) == 0 {
		return nil
	}

	var violations []Violation
	body := c.Request.ParsedBody()

	for _, field := range cfg.RequiredFields {
		if body == nil {
			violations = append(violations, Violation{
				Field:   field,
				Rule:    "required",
				Message: "field is required",
			})
			continue
		}

		value, ok := body[field]
		if !ok || isEmpty(value) {
			violations = append(violations, Violation{
				Field:   field,
				Rule:    "required",
				Message: "field is required and must not be empty",
			})
		}
	}

	for field, rules := range cfg.Rules {
		value := c.Request.BodyField(field)
		if value == "" {
			// Absence is the required-fields check's concern.
			continue
		}
		violations = append(violations, ApplyRules(field, value, rules)...)
	}

	return violations
}

func isEmpty(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []interface{}:
		return len(v) == 0
	case map[string]interface{}:
		return len(v) == 0
	default:
		return false
	}
}

// Ensure Stage implements pipeline.Stage.
var _ pipeline.Stage = (*Stage)(nil)
