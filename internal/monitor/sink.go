package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/shiptrack/gateway/internal/observability"
)

// Alert types raised by threshold checks.
const (
	AlertSlowRequest = "slow_request"
	AlertHighMemory  = "high_memory"
)

// Alert is one threshold breach.
type Alert struct {
	// Type is the alert type.
	Type string `json:"type"`

	// Route is the matched route path.
	Route string `json:"route"`

	// Method is the request method.
	Method string `json:"method"`

	// RequestID correlates the alert with request logs.
	RequestID string `json:"request_id"`

	// Value is the measured value that breached.
	Value float64 `json:"value"`

	// Threshold is the configured limit.
	Threshold float64 `json:"threshold"`

	// Timestamp is when the breach was observed.
	Timestamp time.Time `json:"timestamp"`
}

// AlertSink delivers alerts to an external destination. Send failures
// must never affect request processing.
type AlertSink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Send delivers one alert.
	Send(ctx context.Context, alert *Alert) error
}

// LogSink writes alerts to the structured log.
type LogSink struct {
	logger observability.Logger
}

// NewLogSink creates a log-backed alert sink.
func NewLogSink(logger observability.Logger) *LogSink {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LogSink{logger: logger}
}

// Name implements AlertSink.
func (s *LogSink) Name() string { return "log" }

// Send implements AlertSink.
func (s *LogSink) Send(ctx context.Context, alert *Alert) error {
	s.logger.Warn("performance alert",
		observability.String("type", alert.Type),
		observability.String("route", alert.Route),
		observability.String("method", alert.Method),
		observability.String("request_id", alert.RequestID),
		observability.Float64("value", alert.Value),
		observability.Float64("threshold", alert.Threshold))
	return nil
}

// WebhookSink POSTs alerts as JSON to an external endpoint. Calls are
// guarded by a circuit breaker so a dead endpoint stops costing
// timeouts quickly.
type WebhookSink struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  observability.Logger
}

// WebhookSinkOption is a functional option for the webhook sink.
type WebhookSinkOption func(*WebhookSink)

// WithWebhookClient sets the HTTP client.
func WithWebhookClient(client *http.Client) WebhookSinkOption {
	return func(s *WebhookSink) {
		s.client = client
	}
}

// WithWebhookLogger sets the logger.
func WithWebhookLogger(logger observability.Logger) WebhookSinkOption {
	return func(s *WebhookSink) {
		s.logger = logger
	}
}

// NewWebhookSink creates a webhook alert sink for the given URL.
func NewWebhookSink(url string, opts ...WebhookSinkOption) *WebhookSink {
	s := &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "alert-webhook",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Info("alert webhook circuit state change",
				observability.String("from", from.String()),
				observability.String("to", to.String()))
		},
	})

	return s
}

// Name implements AlertSink.
func (s *WebhookSink) Name() string { return "webhook" }

// Send implements AlertSink.
func (s *WebhookSink) Send(ctx context.Context, alert *Alert) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.post(ctx, alert)
	})
	return err
}

func (s *WebhookSink) post(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver alert: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// Ensure implementations satisfy AlertSink.
var (
	_ AlertSink = (*LogSink)(nil)
	_ AlertSink = (*WebhookSink)(nil)
)
