package chat

import (
	"sync"
	"time"
)

// RateLimiter is a per-connection sliding-window limiter for inbound
// chat traffic.
type RateLimiter struct {
	mu     sync.Mutex
	marks  []time.Time
	limit  int
	window time.Duration
}

// NewRateLimiter constructs a RateLimiter, substituting safe defaults
// for invalid inputs.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &RateLimiter{
		marks:  make([]time.Time, 0, limit+8),
		limit:  limit,
		window: window,
	}
}

// Allow reports whether an event at time "now" should be permitted.
func (r *RateLimiter) Allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Marks are appended in order, so everything before the first
	// in-window mark can be dropped in one copy.
	cut := now.Add(-r.window)
	first := 0
	for first < len(r.marks) && !r.marks[first].After(cut) {
		first++
	}
	if first > 0 {
		r.marks = append(r.marks[:0], r.marks[first:]...)
	}

	if len(r.marks) >= r.limit {
		return false
	}
	r.marks = append(r.marks, now)
	return true
}
