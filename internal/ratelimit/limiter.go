// Package ratelimit provides sliding-window admission control for the
// gateway pipeline.
package ratelimit

import (
	"context"
	"time"
)

// Limiter defines the interface for rate limiting.
type Limiter interface {
	// Allow checks if a request is allowed for the given key against
	// the given limit. A zero-valued limit falls back to the limiter's
	// defaults.
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)

	// Reset clears the rate limit state for the given key.
	Reset(ctx context.Context, key string) error
}

// Limit describes the admission budget for a key.
type Limit struct {
	// Requests is the maximum number of requests allowed in the window.
	Requests int

	// Window is the sliding window duration.
	Window time.Duration

	// Burst caps admissions within any one-second span. Zero disables
	// the burst check.
	Burst int
}

// Result represents the outcome of an admission check.
type Result struct {
	// Allowed indicates whether the request is admitted.
	Allowed bool

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// ResetAfter is the duration until the oldest admission leaves the
	// window.
	ResetAfter time.Duration

	// RetryAfter is the duration to wait before retrying; zero when
	// allowed.
	RetryAfter time.Duration
}

// ResetTime returns the absolute time at which the window resets.
func (r *Result) ResetTime() time.Time {
	return time.Now().Add(r.ResetAfter)
}
