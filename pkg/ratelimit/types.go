package ratelimit

import (
	"context"
	"time"
)

// Result contains the result of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Remaining is the number of requests remaining in the current window.
	Remaining int

	// ResetAt is the time when the current window ends.
	ResetAt time.Time
}

// RetryAfter returns how long to wait before the next request is allowed.
// Returns 0 if the current request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	return max(time.Until(r.ResetAt), 0)
}

// Limiter defines the interface for rate limiting implementations.
type Limiter interface {
	// Allow checks if a single request is allowed for the given key
	// and counts it against the current window.
	Allow(ctx context.Context, key string) (*Result, error)

	// AllowN checks if n requests are allowed for the given key.
	AllowN(ctx context.Context, key string, n int) (*Result, error)

	// Status returns the current window state for the given key
	// without counting a request.
	Status(ctx context.Context, key string) (*Result, error)

	// Reset drops the current window for the given key.
	Reset(ctx context.Context, key string) error
}

// Store defines the interface for fixed-window counter backends.
type Store interface {
	// IncrementAndGet atomically adds incr to the counter for key. If no window
	// is active for key, or the active one has elapsed, a new window of the given
	// length is started with the counter set to incr.
	// Returns the counter value after the increment and the time left in the window.
	IncrementAndGet(ctx context.Context, key string, incr int, window time.Duration) (current int64, ttl time.Duration, err error)

	// Get returns the current counter value and the time left in the window.
	// A key without an active window reports (0, 0).
	Get(ctx context.Context, key string) (current int64, ttl time.Duration, err error)

	// Delete removes the window for the given key.
	Delete(ctx context.Context, key string) error
}
