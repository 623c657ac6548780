package audit

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shiptrack/gateway/internal/observability"
)

// Recorder appends audit records to a durable store.
type Recorder interface {
	// Record appends one audit record. Implementations must not fail
	// the request path; errors are logged, not returned.
	Record(ctx context.Context, record *Record)
}

// Metrics contains audit metrics.
type Metrics struct {
	recordsTotal *prometheus.CounterVec
}

// NewMetrics creates audit metrics registered with the default registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates audit metrics registered with the
// provided registerer.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "records_total",
				Help:      "Total number of audit records written",
			},
			[]string{"type"},
		),
	}

	_ = registerer.Register(m.recordsTotal)

	return m
}

// writerRecorder appends JSON-encoded records to an io.Writer.
type writerRecorder struct {
	writer  io.Writer
	mu      sync.Mutex
	logger  observability.Logger
	metrics *Metrics
}

// RecorderOption is a functional option for the writer recorder.
type RecorderOption func(*writerRecorder)

// WithRecorderLogger sets the logger.
func WithRecorderLogger(logger observability.Logger) RecorderOption {
	return func(r *writerRecorder) {
		r.logger = logger
	}
}

// WithRecorderMetrics sets the metrics.
func WithRecorderMetrics(metrics *Metrics) RecorderOption {
	return func(r *writerRecorder) {
		r.metrics = metrics
	}
}

// NewWriterRecorder creates a recorder that appends JSON lines to w.
func NewWriterRecorder(w io.Writer, opts ...RecorderOption) Recorder {
	r := &writerRecorder{
		writer: w,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Record implements Recorder.
func (r *writerRecorder) Record(ctx context.Context, record *Record) {
	data, err := json.Marshal(record)
	if err != nil {
		r.logger.Error("failed to encode audit record", observability.Error(err))
		return
	}

	r.mu.Lock()
	_, err = r.writer.Write(append(data, '\n'))
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("failed to write audit record", observability.Error(err))
		return
	}

	if r.metrics != nil {
		r.metrics.recordsTotal.WithLabelValues(string(record.Type)).Inc()
	}
}

// MemoryRecorder keeps records in memory. It backs tests and the breach
// analysis helpers.
type MemoryRecorder struct {
	mu      sync.RWMutex
	records []*Record
}

// NewMemoryRecorder creates an in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record implements Recorder.
func (r *MemoryRecorder) Record(ctx context.Context, record *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
}

// Records returns a snapshot of all records.
func (r *MemoryRecorder) Records() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, len(r.records))
	copy(out, r.records)
	return out
}

// RecordsOfType returns a snapshot of records of the given type.
func (r *MemoryRecorder) RecordsOfType(recordType RecordType) []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Record
	for _, rec := range r.records {
		if rec.Type == recordType {
			out = append(out, rec)
		}
	}
	return out
}

// MostBreachedRoutes returns routes ordered by breach count, most
// breached first.
func (r *MemoryRecorder) MostBreachedRoutes() []RouteBreaches {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, rec := range r.records {
		if rec.Type == TypeRateLimitBreach {
			counts[rec.Route]++
		}
	}

	out := make([]RouteBreaches, 0, len(counts))
	for route, count := range counts {
		out = append(out, RouteBreaches{Route: route, Count: count})
	}
	sortRouteBreaches(out)
	return out
}

// DistinctOffendingIPs returns the set of distinct client IPs that
// breached a rate limit.
func (r *MemoryRecorder) DistinctOffendingIPs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, rec := range r.records {
		if rec.Type != TypeRateLimitBreach || rec.ClientIP == "" {
			continue
		}
		if _, dup := seen[rec.ClientIP]; dup {
			continue
		}
		seen[rec.ClientIP] = struct{}{}
		out = append(out, rec.ClientIP)
	}
	return out
}

// RouteBreaches pairs a route with its breach count.
type RouteBreaches struct {
	Route string
	Count int
}

func sortRouteBreaches(breaches []RouteBreaches) {
	sort.SliceStable(breaches, func(i, j int) bool {
		return breaches[i].Count > breaches[j].Count
	})
}

// NopRecorder discards all records.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, *Record) {}
