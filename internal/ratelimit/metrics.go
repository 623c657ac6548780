package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains rate limiter metrics.
type Metrics struct {
	checksTotal   *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	storeErrors   prometheus.Counter
}

// NewMetrics creates rate limiter metrics registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates rate limiter metrics registered with
// the provided registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "checks_total",
				Help:      "Total number of rate limit admission checks",
			},
			[]string{"route", "outcome"},
		),
		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "check_duration_seconds",
				Help:      "Duration of rate limit admission checks",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"route"},
		),
		storeErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "store_errors_total",
				Help:      "Total number of rate limit store failures",
			},
		),
	}

	// Duplicate registration is tolerated; descriptors are identical.
	_ = registerer.Register(m.checksTotal)
	_ = registerer.Register(m.checkDuration)
	_ = registerer.Register(m.storeErrors)

	return m
}

// RecordCheck records one admission check.
func (m *Metrics) RecordCheck(route, outcome string, duration time.Duration) {
	m.checksTotal.WithLabelValues(route, outcome).Inc()
	m.checkDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordStoreError records a store failure.
func (m *Metrics) RecordStoreError() {
	m.storeErrors.Inc()
}
