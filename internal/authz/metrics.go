package authz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains authorization metrics.
type Metrics struct {
	decisionsTotal   *prometheus.CounterVec
	decisionDuration prometheus.Histogram
}

// NewMetrics creates authorization metrics registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates authorization metrics registered
// with the provided registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "decisions_total",
				Help:      "Total number of authorization decisions",
			},
			[]string{"outcome"},
		),
		decisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "decision_duration_seconds",
				Help:      "Duration of authorization decisions",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01},
			},
		),
	}

	// Duplicate registration is tolerated; descriptors are identical.
	_ = registerer.Register(m.decisionsTotal)
	_ = registerer.Register(m.decisionDuration)

	return m
}

// RecordDecision records one authorization decision.
func (m *Metrics) RecordDecision(outcome string, duration time.Duration) {
	m.decisionsTotal.WithLabelValues(outcome).Inc()
	m.decisionDuration.Observe(duration.Seconds())
}
