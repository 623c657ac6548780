package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains monitoring metrics.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	heapDeltaBytes   prometheus.Histogram
	alertsTotal      *prometheus.CounterVec
	sinkErrorsTotal  *prometheus.CounterVec
}

// NewMetrics creates monitoring metrics registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates monitoring metrics registered with
// the provided registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request processing duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		heapDeltaBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_heap_delta_bytes",
				Help:      "Heap growth observed over one request",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
		alertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "performance_alerts_total",
				Help:      "Total number of performance alerts raised",
			},
			[]string{"type"},
		),
		sinkErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_sink_errors_total",
				Help:      "Total number of failed alert deliveries",
			},
			[]string{"sink"},
		),
	}

	// Duplicate registration is tolerated; descriptors are identical.
	_ = registerer.Register(m.requestsTotal)
	_ = registerer.Register(m.requestDuration)
	_ = registerer.Register(m.heapDeltaBytes)
	_ = registerer.Register(m.alertsTotal)
	_ = registerer.Register(m.sinkErrorsTotal)

	return m
}

// RecordRequest records one processed request.
func (m *Metrics) RecordRequest(method, path, status string, elapsed time.Duration, heapDelta int64) {
	m.requestsTotal.WithLabelValues(method, path, status).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
	m.heapDeltaBytes.Observe(float64(heapDelta))
}

// RecordAlert records a raised alert.
func (m *Metrics) RecordAlert(alertType string) {
	m.alertsTotal.WithLabelValues(alertType).Inc()
}

// RecordSinkError records a failed alert delivery.
func (m *Metrics) RecordSinkError(sink string) {
	m.sinkErrorsTotal.WithLabelValues(sink).Inc()
}
