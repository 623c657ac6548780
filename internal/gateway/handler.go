package gateway

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/shiptrack/gateway/internal/config"
	"github.com/shiptrack/gateway/internal/observability"
	"github.com/shiptrack/gateway/internal/pipeline"
	"github.com/shiptrack/gateway/internal/transform"
)

const (
	// defaultMaxRequestBody caps reads for routes without a validation
	// ceiling.
	defaultMaxRequestBody = 10 << 20

	// bodyReadSlack keeps the read cap above the route ceiling so an
	// oversized body still reaches the validation stage and is rejected
	// as a violation rather than a read error.
	bodyReadSlack = 1 << 20
)

// Executor runs the stage pipeline over a request context.
type Executor interface {
	Execute(ctx context.Context, c *pipeline.Context)
}

// Handler turns HTTP requests into pipeline executions.
type Handler struct {
	cfg         atomic.Pointer[config.GatewayConfig]
	executor    Executor
	transformer *transform.Stage
	logger      observability.Logger
}

// HandlerOption is a functional option for the handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger.
func WithHandlerLogger(logger observability.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithResponseTransformer sets the stage used for outbound response
// transformation after the chain completes.
func WithResponseTransformer(stage *transform.Stage) HandlerOption {
	return func(h *Handler) {
		h.transformer = stage
	}
}

// NewHandler creates a request handler over the executor.
func NewHandler(cfg *config.GatewayConfig, executor Executor, opts ...HandlerOption) *Handler {
	h := &Handler{
		executor: executor,
		logger:   observability.NopLogger(),
	}
	h.cfg.Store(cfg)

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// UpdateConfig swaps the active configuration. In-flight requests keep
// the snapshot they started with.
func (h *Handler) UpdateConfig(cfg *config.GatewayConfig) {
	h.cfg.Store(cfg)
	h.logger.Info("configuration updated",
		observability.Int("routes", len(cfg.Routes)))
}

// readLimit returns the body read cap for the route: the validation
// ceiling plus slack, so the validation stage owns size rejections.
func readLimit(route *config.Route) int64 {
	limit := int64(defaultMaxRequestBody)
	if v := route.Validation; v != nil && v.MaxRequestSize > limit {
		limit = v.MaxRequestSize
	}
	return limit + bodyReadSlack
}

// Handle processes one request through the pipeline.
func (h *Handler) Handle(c *gin.Context) {
	cfg := h.cfg.Load()

	route := cfg.FindRoute(c.Request.Method, c.Request.URL.Path)
	if route == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"message": "Route not found",
				"code":    "NOT_FOUND",
			},
		})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, readLimit(route))

	pc, err := pipeline.NewContext(c.Request, route)
	if err != nil {
		h.logger.Warn("failed to build request context",
			observability.String("path", c.Request.URL.Path),
			observability.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"message": "Malformed request",
				"code":    "INVALID_REQUEST",
			},
		})
		return
	}

	h.executor.Execute(c.Request.Context(), pc)

	if h.transformer != nil {
		h.transformer.TransformResponse(pc)
	}

	h.write(c, pc)
}

func (h *Handler) write(c *gin.Context, pc *pipeline.Context) {
	c.Header("X-Request-ID", pc.RequestID())

	resp := pc.Response()
	if resp == nil {
		// No stage produced a response; the request passed every
		// check.
		h.writeAccepted(c, pc)
		return
	}

	for name, values := range resp.Header {
		for _, v := range values {
			c.Writer.Header().Add(name, v)
		}
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.Status, contentType, resp.Body)
}

func (h *Handler) writeAccepted(c *gin.Context, pc *pipeline.Context) {
	body := gin.H{
		"status":     "accepted",
		"request_id": pc.RequestID(),
	}
	if data, ok := pc.Meta(transform.MetaTransformedBody); ok {
		body["data"] = data
	}
	c.JSON(http.StatusOK, body)
}
