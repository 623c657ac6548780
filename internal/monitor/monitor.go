package monitor

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/shiptrack/gateway/internal/audit"
	"github.com/shiptrack/gateway/internal/config"
	"github.com/shiptrack/gateway/internal/observability"
	"github.com/shiptrack/gateway/internal/pipeline"
)

// Executor runs a pipeline over a request context. Satisfied by
// *pipeline.Chain.
type Executor interface {
	Execute(ctx context.Context, c *pipeline.Context)
}

// Monitor wraps an Executor and measures the entire delegated call,
// not just its own logic. Threshold breaches raise alerts through the
// configured sinks without ever blocking the request path.
type Monitor struct {
	executor Executor
	cfg      config.MonitorConfig
	sinks    []AlertSink
	recorder audit.Recorder
	logger   observability.Logger
	metrics  *Metrics
}

// Option is a functional option for the monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Monitor) {
		m.metrics = metrics
	}
}

// WithSinks sets the alert sinks.
func WithSinks(sinks ...AlertSink) Option {
	return func(m *Monitor) {
		m.sinks = sinks
	}
}

// WithRecorder sets the audit recorder for alert records.
func WithRecorder(recorder audit.Recorder) Option {
	return func(m *Monitor) {
		m.recorder = recorder
	}
}

// New creates a monitor around the executor.
func New(executor Executor, cfg config.MonitorConfig, opts ...Option) *Monitor {
	m := &Monitor{
		executor: executor,
		cfg:      cfg,
		recorder: audit.NopRecorder{},
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.metrics == nil {
		m.metrics = NewMetrics("gateway")
	}

	return m
}

// Execute runs the wrapped pipeline, measuring wall-clock time and
// heap growth around the whole call.
func (m *Monitor) Execute(ctx context.Context, c *pipeline.Context) {
	var before runtime.MemStats
	runtime.ReadMemStats(&before)
	start := time.Now()

	m.executor.Execute(ctx, c)

	elapsed := time.Since(start)
	var after runtime.MemStats
	runtime.ReadMemStats(&after)

	// A GC between the two reads can shrink the heap; a negative delta
	// carries no signal.
	var heapDelta int64
	if after.HeapAlloc > before.HeapAlloc {
		heapDelta = int64(after.HeapAlloc - before.HeapAlloc)
	}

	status := 200
	if resp := c.Response(); resp != nil {
		status = resp.Status
	}

	m.metrics.RecordRequest(c.Request.Method, c.Route.Path, strconv.Itoa(status), elapsed, heapDelta)
	c.SetMeta("processing_time_ms", float64(elapsed)/float64(time.Millisecond))
	c.SetMeta("memory_delta_bytes", heapDelta)

	m.logger.Info("request processed",
		observability.String("request_id", c.RequestID()),
		observability.String("method", c.Request.Method),
		observability.String("path", c.Request.Path),
		observability.Int("status", status),
		observability.Duration("elapsed", elapsed),
		observability.Int64("heap_delta", heapDelta))

	m.checkThresholds(c, elapsed, heapDelta)
}

func (m *Monitor) checkThresholds(c *pipeline.Context, elapsed time.Duration, heapDelta int64) {
	now := time.Now()

	if threshold := m.cfg.SlowRequestThreshold.Duration(); threshold > 0 && elapsed > threshold {
		m.raise(c, &Alert{
			Type:      AlertSlowRequest,
			Route:     c.Route.Path,
			Method:    c.Request.Method,
			RequestID: c.RequestID(),
			Value:     float64(elapsed) / float64(time.Millisecond),
			Threshold: float64(threshold) / float64(time.Millisecond),
			Timestamp: now,
		})
	}

	if m.cfg.HighMemoryThreshold > 0 && heapDelta > m.cfg.HighMemoryThreshold {
		m.raise(c, &Alert{
			Type:      AlertHighMemory,
			Route:     c.Route.Path,
			Method:    c.Request.Method,
			RequestID: c.RequestID(),
			Value:     float64(heapDelta),
			Threshold: float64(m.cfg.HighMemoryThreshold),
			Timestamp: now,
		})
	}
}

func (m *Monitor) raise(c *pipeline.Context, alert *Alert) {
	m.logger.Warn("performance threshold breached",
		observability.String("type", alert.Type),
		observability.String("route", alert.Route),
		observability.String("request_id", alert.RequestID),
		observability.Float64("value", alert.Value),
		observability.Float64("threshold", alert.Threshold))
	m.metrics.RecordAlert(alert.Type)

	record := audit.AlertRecord(alert.Type, alert.Route, alert.Method, int64(alert.Value), int64(alert.Threshold))
	record.ClientIP = c.Request.ClientIP()
	m.recorder.Record(context.Background(), record)

	// Sinks run detached from the request; a slow or broken sink must
	// never slow the caller down.
	go m.dispatch(alert)
}

func (m *Monitor) dispatch(alert *Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, sink := range m.sinks {
		m.send(ctx, sink, alert)
	}
}

func (m *Monitor) send(ctx context.Context, sink AlertSink, alert *Alert) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("alert sink panicked",
				observability.String("sink", sink.Name()),
				observability.Any("panic", r))
		}
	}()

	if err := sink.Send(ctx, alert); err != nil {
		m.metrics.RecordSinkError(sink.Name())
		m.logger.Warn("alert delivery failed",
			observability.String("sink", sink.Name()),
			observability.Error(err))
	}
}
