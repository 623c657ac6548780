// Package audit records durable gateway side effects: rate limit
// breaches and performance alerts. Records are append-only and written
// through a narrow Recorder interface; the backing store is external to
// the pipeline core.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// RecordType identifies the kind of audit record.
type RecordType string

// Record types.
const (
	TypeRateLimitBreach  RecordType = "rate_limit_breach"
	TypePerformanceAlert RecordType = "performance_alert"
)

// Record is one durable audit row.
type Record struct {
	// ID is a unique identifier for the record.
	ID string `json:"id"`

	// Timestamp is when the record was created.
	Timestamp time.Time `json:"timestamp"`

	// Type is the kind of record.
	Type RecordType `json:"type"`

	// Route is the route path the record concerns.
	Route string `json:"route,omitempty"`

	// Method is the HTTP method.
	Method string `json:"method,omitempty"`

	// ClientIP is the offending or observed client IP.
	ClientIP string `json:"client_ip,omitempty"`

	// Subject is the principal subject, if resolved.
	Subject string `json:"subject,omitempty"`

	// Details carries record-specific data.
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewRecord creates a record with a fresh ID and timestamp.
func NewRecord(recordType RecordType) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Type:      recordType,
	}
}

// BreachRecord builds a rate limit breach record.
func BreachRecord(route, method, clientIP, key string, limit int) *Record {
	r := NewRecord(TypeRateLimitBreach)
	r.Route = route
	r.Method = method
	r.ClientIP = clientIP
	r.Details = map[string]interface{}{
		"key":   key,
		"limit": limit,
	}
	return r
}

// AlertRecord builds a performance alert record.
func AlertRecord(alertType, route, method string, value, threshold int64) *Record {
	r := NewRecord(TypePerformanceAlert)
	r.Route = route
	r.Method = method
	r.Details = map[string]interface{}{
		"alert_type": alertType,
		"value":      value,
		"threshold":  threshold,
	}
	return r
}
