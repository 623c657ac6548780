package transform

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains transformation metrics.
type Metrics struct {
	transformsTotal   *prometheus.CounterVec
	transformDuration *prometheus.HistogramVec
}

// NewMetrics creates transformation metrics registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates transformation metrics registered
// with the provided registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		transformsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transform",
				Name:      "operations_total",
				Help:      "Total number of payload transformations",
			},
			[]string{"direction"},
		),
		transformDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "transform",
				Name:      "operation_duration_seconds",
				Help:      "Duration of payload transformations",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01},
			},
			[]string{"direction"},
		),
	}

	// Duplicate registration is tolerated; descriptors are identical.
	_ = registerer.Register(m.transformsTotal)
	_ = registerer.Register(m.transformDuration)

	return m
}

// RecordTransform records one transformation.
func (m *Metrics) RecordTransform(direction string, duration time.Duration) {
	m.transformsTotal.WithLabelValues(direction).Inc()
	m.transformDuration.WithLabelValues(direction).Observe(duration.Seconds())
}
