package transform

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shiptrack/gateway/internal/config"
	"github.com/shiptrack/gateway/internal/observability"
	"github.com/shiptrack/gateway/internal/pipeline"
	"github.com/shiptrack/gateway/internal/validate"
)

const stageName = "transform"

// MetaTransformedBody is the context metadata key carrying the
// transformed request body.
const MetaTransformedBody = "transformed_body"

// Stage is the transformation stage. Inbound it rewrites the parsed
// request body; outbound, via TransformResponse, it rewrites a
// structured response and re-serializes it to the route's wire format.
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

// NewStage creates the transformation stage.
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
func (s *Stage) Priority() int { return pipeline.PriorityTransform }

// ShouldRun implements pipeline.Stage.
func (s *Stage) ShouldRun(c *pipeline.Context) bool {
	return c.Route != nil && c.Route.Transform != nil && c.Route.Transform.TransformRequest
}

// Handle implements pipeline.Stage. Transformation failures never
// reject a request: the original payload passes through and the failure
// is logged.
func (s *Stage) Handle(ctx context.Context, c *pipeline.Context) bool {
	start := time.Now()
	cfg := c.Route.Transform

	body := s.requestBody(c)
	if body == nil {
		c.AppendLog(stageName, "debug", "no structured body to transform", nil)
		return true
	}

	transformed := func() (out map[string]interface{}) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Warn("request transform panicked, passing payload through",
					observability.String("path", c.Request.Path),
					observability.Any("panic", r))
				out = body
			}
		}()
		return s.transformRequest(c, body, cfg)
	}()

	c.SetMeta(MetaTransformedBody, transformed)
	s.metrics.RecordTransform("request", time.Since(start))
	c.AppendLog(stageName, "debug", "request transformed", map[string]interface{}{
		"fields": len(transformed),
	})
	return true
}

// requestBody prefers the sanitized body attached by validation,
// falling back to the parsed request body.
func (s *Stage) requestBody(c *pipeline.Context) map[string]interface{} {
	if v, ok := c.Meta(validate.MetaSanitizedBody); ok {
		if m, ok := v.(map[string]interface{}); ok {
			return m
		}
	}
	return c.Request.ParsedBody()
}

func (s *Stage) transformRequest(c *pipeline.Context, body map[string]interface{}, cfg *config.TransformConfig) map[string]interface{} {
	out := ApplyMappings(body, cfg.FieldMappings)
	out = s.applyTransformers(out, cfg.Transformers)

	if cfg.NormalizeFields {
		out = SnakeCaseKeys(out)
	}

	if cfg.AddMetadata {
		out["_metadata"] = map[string]interface{}{
			"request_id":   c.RequestID(),
			"client_ip":    c.Request.ClientIP(),
			"processed_at": time.Now().UTC().Format(time.RFC3339),
		}
	}

	return out
}

// TransformResponse rewrites a structured response in place: named
// transformers, reversed field mapping, metadata injection, and
// re-serialization to the route's data format. Unstructured responses
// and all failures leave the response untouched.
func (s *Stage) TransformResponse(c *pipeline.Context) {
	if c.Route == nil || c.Route.Transform == nil || !c.Route.Transform.TransformResponse {
		return
	}
	resp := c.Response()
	if resp == nil || len(resp.Body) == 0 {
		return
	}

	var body map[string]interface{}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		s.logger.Debug("response is not structured data, skipping transform",
			observability.String("path", c.Request.Path))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("response transform panicked, passing payload through",
				observability.String("path", c.Request.Path),
				observability.Any("panic", r))
		}
	}()

	start := time.Now()
	cfg := c.Route.Transform

	out := s.applyTransformers(body, cfg.Transformers)
	out = ApplyMappings(out, ReverseMappings(cfg.FieldMappings))

	if cfg.AddMetadata {
		out["_metadata"] = map[string]interface{}{
			"request_id":   c.RequestID(),
			"processed_at": time.Now().UTC().Format(time.RFC3339),
		}
	}

	serialized, contentType, err := Serialize(out, cfg.DataFormat)
	if err != nil {
		s.logger.Warn("response re-serialization failed, keeping original",
			observability.String("format", cfg.DataFormat),
			observability.Error(err))
		return
	}

	resp.Body = serialized
	resp.ContentType = contentType
	c.SetResponse(resp)
	s.metrics.RecordTransform("response", time.Since(start))
}

func (s *Stage) applyTransformers(data map[string]interface{}, names []string) map[string]interface{} {
	for _, name := range names {
		fn := Lookup(name)
		if fn == nil {
			s.logger.Warn("unknown transformer in route config",
				observability.String("transformer", name))
			continue
		}
		data = fn(data)
	}
	return data
}

// Ensure Stage implements pipeline.Stage.
var _ pipeline.Stage = (*Stage)(nil)
