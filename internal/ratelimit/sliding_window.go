package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/shiptrack/gateway/internal/observability"
	"github.com/shiptrack/gateway/internal/ratelimit/store"
)

// maxTimestampsPerKey bounds memory per key; only the most recent
// admissions are retained.
const maxTimestampsPerKey = 1000

// burstSpan is the interval over which the burst allowance is counted.
const burstSpan = time.Second

// distributedPrecision is the number of sub-windows used for the
// store-backed sliding window approximation.
const distributedPrecision = 10

// SlidingWindowLimiter implements sliding-window admission control.
// Without a store it keeps per-key timestamp sequences in memory;
// with a store it approximates the window with sub-window counters.
type SlidingWindowLimiter struct {
	store    store.Store
	defaults Limit
	logger   observability.Logger

	windows sync.Map
}

// windowState holds the admission timestamps for one key. Concurrent
// requests against the same key serialize on the per-key mutex;
// different keys proceed independently.
type windowState struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// SlidingWindowOption is a functional option for the limiter.
type SlidingWindowOption func(*SlidingWindowLimiter)

// WithStore sets a distributed backing store.
func WithStore(s store.Store) SlidingWindowOption {
	return func(l *SlidingWindowLimiter) {
		l.store = s
	}
}

// WithLimiterLogger sets the logger.
func WithLimiterLogger(logger observability.Logger) SlidingWindowOption {
	return func(l *SlidingWindowLimiter) {
		l.logger = logger
	}
}

// NewSlidingWindowLimiter creates a sliding window limiter with the
// given default limit.
func NewSlidingWindowLimiter(defaults Limit, opts ...SlidingWindowOption) *SlidingWindowLimiter {
	l := &SlidingWindowLimiter{
		defaults: defaults,
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Allow implements Limiter.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	if limit.Requests <= 0 {
		limit.Requests = l.defaults.Requests
	}
	if limit.Window <= 0 {
		limit.Window = l.defaults.Window
	}

	if l.store != nil {
		return l.allowDistributed(ctx, key, limit)
	}
	return l.allowLocal(key, limit), nil
}

// allowLocal performs admission control against in-memory state.
func (l *SlidingWindowLimiter) allowLocal(key string, limit Limit) *Result {
	now := time.Now()
	value, _ := l.windows.LoadOrStore(key, &windowState{})
	ws := value.(*windowState)

	ws.mu.Lock()
	defer ws.mu.Unlock()

	// Lazily prune entries older than the window.
	windowStart := now.Add(-limit.Window)
	kept := ws.timestamps[:0]
	for _, ts := range ws.timestamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	ws.timestamps = kept

	count := len(ws.timestamps)

	if count >= limit.Requests {
		return &Result{
			Allowed:    false,
			Limit:      limit.Requests,
			Remaining:  0,
			ResetAfter: l.resetAfter(ws, now, limit.Window),
			RetryAfter: l.retryAfter(ws, now, count, limit),
		}
	}

	if limit.Burst > 0 {
		recent := 0
		burstStart := now.Add(-burstSpan)
		for i := len(ws.timestamps) - 1; i >= 0; i-- {
			if !ws.timestamps[i].After(burstStart) {
				break
			}
			recent++
		}
		if recent >= limit.Burst {
			oldestRecent := ws.timestamps[len(ws.timestamps)-recent]
			retry := oldestRecent.Add(burstSpan).Sub(now)
			if retry < 0 {
				retry = 0
			}
			return &Result{
				Allowed:    false,
				Limit:      limit.Requests,
				Remaining:  limit.Requests - count,
				ResetAfter: l.resetAfter(ws, now, limit.Window),
				RetryAfter: retry,
			}
		}
	}

	ws.timestamps = append(ws.timestamps, now)
	if len(ws.timestamps) > maxTimestampsPerKey {
		ws.timestamps = ws.timestamps[len(ws.timestamps)-maxTimestampsPerKey:]
	}
	count++

	return &Result{
		Allowed:    true,
		Limit:      limit.Requests,
		Remaining:  limit.Requests - count,
		ResetAfter: l.resetAfter(ws, now, limit.Window),
	}
}

func (l *SlidingWindowLimiter) resetAfter(ws *windowState, now time.Time, window time.Duration) time.Duration {
	if len(ws.timestamps) == 0 {
		return window
	}
	reset := ws.timestamps[0].Add(window).Sub(now)
	if reset < 0 {
		reset = 0
	}
	return reset
}

// retryAfter is the time until the oldest timestamp exits the window,
// freeing one admission.
func (l *SlidingWindowLimiter) retryAfter(ws *windowState, now time.Time, count int, limit Limit) time.Duration {
	excess := count + 1 - limit.Requests
	if excess <= 0 || excess > len(ws.timestamps) {
		return 0
	}
	retry := ws.timestamps[excess-1].Add(limit.Window).Sub(now)
	if retry < 0 {
		retry = 0
	}
	return retry
}

// allowDistributed performs admission control against the backing store
// using sub-window counters.
func (l *SlidingWindowLimiter) allowDistributed(ctx context.Context, key string, limit Limit) (*Result, error) {
	now := time.Now()
	windowMs := limit.Window.Milliseconds()
	subWindowSize := windowMs / distributedPrecision
	if subWindowSize < 1 {
		subWindowSize = 1
	}
	currentSubWindow := now.UnixMilli() / subWindowSize

	total := int64(0)
	for i := 0; i < distributedPrecision; i++ {
		subKey := key + ":sw:" + strconv.FormatInt(currentSubWindow-int64(i), 10)
		count, err := l.store.Get(ctx, subKey)
		if err != nil && !store.IsKeyNotFound(err) {
			return nil, err
		}
		total += count
	}

	allowed := int(total) < limit.Requests

	if allowed {
		currentKey := key + ":sw:" + strconv.FormatInt(currentSubWindow, 10)
		expiration := limit.Window + time.Duration(subWindowSize)*time.Millisecond
		if _, err := l.store.IncrementWithExpiry(ctx, currentKey, 1, expiration); err != nil {
			return nil, err
		}
		total++
	}

	remaining := limit.Requests - int(total)
	if remaining < 0 {
		remaining = 0
	}

	var retryAfter time.Duration
	if !allowed {
		retryAfter = time.Duration(subWindowSize) * time.Millisecond
	}

	return &Result{
		Allowed:    allowed,
		Limit:      limit.Requests,
		Remaining:  remaining,
		ResetAfter: limit.Window,
		RetryAfter: retryAfter,
	}, nil
}

// Reset implements Limiter.
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	l.windows.Delete(key)

	if l.store != nil {
		now := time.Now()
		subWindowSize := l.defaults.Window.Milliseconds() / distributedPrecision
		if subWindowSize < 1 {
			subWindowSize = 1
		}
		currentSubWindow := now.UnixMilli() / subWindowSize
		for i := 0; i < distributedPrecision; i++ {
			subKey := key + ":sw:" + strconv.FormatInt(currentSubWindow-int64(i), 10)
			if err := l.store.Delete(ctx, subKey); err != nil {
				l.logger.Warn("failed to delete sub-window", observability.Error(err))
			}
		}
	}

	return nil
}

// Cleanup removes window states whose newest admission is older than
// maxAge.
func (l *SlidingWindowLimiter) Cleanup(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	l.windows.Range(func(key, value interface{}) bool {
		ws := value.(*windowState)
		ws.mu.Lock()
		stale := true
		for _, ts := range ws.timestamps {
			if ts.After(cutoff) {
				stale = false
				break
			}
		}
		ws.mu.Unlock()

		if stale {
			l.windows.Delete(key)
		}
		return true
	})
}
