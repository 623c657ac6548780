package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains authentication metrics.
type Metrics struct {
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetrics creates authentication metrics registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates authentication metrics registered
// with the provided registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "attempts_total",
				Help:      "Total number of authentication attempts per provider",
			},
			[]string{"provider", "outcome"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "attempt_duration_seconds",
				Help:      "Duration of authentication attempts",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"provider"},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "cache_hits_total",
				Help:      "Total number of auth result cache hits",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "cache_misses_total",
				Help:      "Total number of auth result cache misses",
			},
		),
	}

	// Duplicate registration is tolerated; descriptors are identical.
	_ = registerer.Register(m.attemptsTotal)
	_ = registerer.Register(m.attemptDuration)
	_ = registerer.Register(m.cacheHits)
	_ = registerer.Register(m.cacheMisses)

	return m
}

// RecordAttempt records one provider attempt.
func (m *Metrics) RecordAttempt(provider, outcome string, duration time.Duration) {
	m.attemptsTotal.WithLabelValues(provider, outcome).Inc()
	m.attemptDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordCacheHit records an auth result cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Inc()
}

// RecordCacheMiss records an auth result cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Inc()
}
