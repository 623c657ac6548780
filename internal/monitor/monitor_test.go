package monitor

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiptrack/gateway/internal/audit"
	"github.com/shiptrack/gateway/internal/config"
	"github.com/shiptrack/gateway/internal/pipeline"
)

// sleepingExecutor stands in for the chain and takes a fixed amount of
// wall-clock time.
type sleepingExecutor struct {
	delay  time.Duration
	status int
}

func (e *sleepingExecutor) Execute(ctx context.Context, c *pipeline.Context) {
	time.Sleep(e.delay)
	if e.status != 0 {
		c.Terminate(pipeline.NewJSONResponse(e.status, map[string]interface{}{"ok": true}))
	}
}

// captureSink records every alert it receives.
type captureSink struct {
	mu     sync.Mutex
	alerts []*Alert
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Send(ctx context.Context, alert *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *captureSink) received() []*Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// panickySink always panics on delivery.
type panickySink struct{}

func (panickySink) Name() string { return "panicky" }

func (panickySink) Send(ctx context.Context, alert *Alert) error {
	panic("sink exploded")
}

func monitorContext(t *testing.T) *pipeline.Context {
	t.Helper()

	r := httptest.NewRequest("GET", "/api/shipments", nil)
	r.RemoteAddr = "198.51.100.7:4412"

	c, err := pipeline.NewContext(r, &config.Route{Path: "/api/shipments", Methods: []string{"GET"}})
	require.NoError(t, err)
	return c
}

func newTestMetrics() *Metrics {
	return NewMetricsWithRegisterer("gateway", prometheus.NewRegistry())
}

func waitForAlerts(t *testing.T, sink *captureSink, want int) []*Alert {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if alerts := sink.received(); len(alerts) >= want {
			return alerts
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d alerts", want)
	return nil
}

func TestMonitor_SlowRequestAlert(t *testing.T) {
	recorder := audit.NewMemoryRecorder()
	sink := &captureSink{}

	m := New(
		&sleepingExecutor{delay: 30 * time.Millisecond, status: 200},
		config.MonitorConfig{SlowRequestThreshold: config.Duration(5 * time.Millisecond)},
		WithRecorder(recorder),
		WithSinks(sink),
		WithMetrics(newTestMetrics()),
	)

	c := monitorContext(t)
	m.Execute(context.Background(), c)

	alerts := waitForAlerts(t, sink, 1)
	assert.Equal(t, AlertSlowRequest, alerts[0].Type)
	assert.Equal(t, "/api/shipments", alerts[0].Route)
	assert.Equal(t, "GET", alerts[0].Method)
	assert.Equal(t, c.RequestID(), alerts[0].RequestID)
	assert.Greater(t, alerts[0].Value, alerts[0].Threshold)

	records := recorder.RecordsOfType(audit.TypePerformanceAlert)
	require.Len(t, records, 1)
	assert.Equal(t, AlertSlowRequest, records[0].Details["alert_type"])
	assert.Equal(t, "198.51.100.7", records[0].ClientIP)
}

func TestMonitor_FastRequestNoAlert(t *testing.T) {
	recorder := audit.NewMemoryRecorder()
	sink := &captureSink{}

	m := New(
		&sleepingExecutor{status: 200},
		config.MonitorConfig{
			SlowRequestThreshold: config.Duration(time.Second),
			HighMemoryThreshold:  1 << 30,
		},
		WithRecorder(recorder),
		WithSinks(sink),
		WithMetrics(newTestMetrics()),
	)

	c := monitorContext(t)
	m.Execute(context.Background(), c)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sink.received())
	assert.Empty(t, recorder.RecordsOfType(audit.TypePerformanceAlert))
}

func TestMonitor_AnnotatesTiming(t *testing.T) {
	m := New(
		&sleepingExecutor{delay: 10 * time.Millisecond, status: 201},
		config.MonitorConfig{},
		WithMetrics(newTestMetrics()),
	)

	c := monitorContext(t)
	m.Execute(context.Background(), c)

	elapsed, ok := c.Meta("processing_time_ms")
	require.True(t, ok)
	assert.GreaterOrEqual(t, elapsed.(float64), 10.0)

	delta, ok := c.Meta("memory_delta_bytes")
	require.True(t, ok)
	assert.GreaterOrEqual(t, delta.(int64), int64(0))
}

func TestMonitor_SinkPanicRecovered(t *testing.T) {
	sink := &captureSink{}

	m := New(
		&sleepingExecutor{delay: 20 * time.Millisecond, status: 200},
		config.MonitorConfig{SlowRequestThreshold: config.Duration(time.Millisecond)},
		WithSinks(panickySink{}, sink),
		WithMetrics(newTestMetrics()),
	)

	c := monitorContext(t)
	m.Execute(context.Background(), c)

	// The panicking sink must not stop delivery to the next one.
	alerts := waitForAlerts(t, sink, 1)
	assert.Equal(t, AlertSlowRequest, alerts[0].Type)
}

func TestMonitor_ZeroThresholdsDisabled(t *testing.T) {
	sink := &captureSink{}

	m := New(
		&sleepingExecutor{delay: 20 * time.Millisecond, status: 200},
		config.MonitorConfig{},
		WithSinks(sink),
		WithMetrics(newTestMetrics()),
	)

	c := monitorContext(t)
	m.Execute(context.Background(), c)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sink.received())
}
