package validate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains validation metrics.
type Metrics struct {
	validationsTotal   *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
}

// NewMetrics creates validation metrics registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates validation metrics registered with
// the provided registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		validationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "validation",
				Name:      "checks_total",
				Help:      "Total number of request validations",
			},
			[]string{"route", "outcome"},
		),
		validationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "validation",
				Name:      "check_duration_seconds",
				Help:      "Duration of request validations",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01},
			},
			[]string{"route"},
		),
	}

	// Duplicate registration is tolerated; descriptors are identical.
	_ = registerer.Register(m.validationsTotal)
	_ = registerer.Register(m.validationDuration)

	return m
}

// RecordValidation records one validation pass.
func (m *Metrics) RecordValidation(route, outcome string, duration time.Duration) {
	m.validationsTotal.WithLabelValues(route, outcome).Inc()
	m.validationDuration.WithLabelValues(route).Observe(duration.Seconds())
}
