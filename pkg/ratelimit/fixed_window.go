package ratelimit

import (
	"context"
	"errors"
	"time"
)

// FixedWindow admits up to limit requests per key in each window.
type FixedWindow struct {
	store  Store
	limit  int
	window time.Duration
	prefix string
}

// FixedWindowOption configures a FixedWindow.
type FixedWindowOption func(*FixedWindow)

// WithKeyPrefix namespaces every key passed to the store.
func WithKeyPrefix(prefix string) FixedWindowOption {
	return func(fw *FixedWindow) {
		fw.prefix = prefix
	}
}

// NewFixedWindow creates a fixed-window limiter that admits limit requests per window.
func NewFixedWindow(store Store, limit int, window time.Duration, opts ...FixedWindowOption) (*FixedWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if window <= 0 {
		return nil, ErrInvalidInterval
	}

	fw := &FixedWindow{
		store:  store,
		limit:  limit,
		window: window,
	}

	for _, opt := range opts {
		opt(fw)
	}

	return fw, nil
}

// Limit returns the number of admissions allowed per window.
func (fw *FixedWindow) Limit() int { return fw.limit }

// Window returns the window length.
func (fw *FixedWindow) Window() time.Duration { return fw.window }

// Allow checks if a single request is allowed for the given key.
func (fw *FixedWindow) Allow(ctx context.Context, key string) (*Result, error) {
	return fw.AllowN(ctx, key, 1)
}

// AllowN counts n requests against the current window and reports whether
// the counter is still within the limit. Rejected requests are counted too.
func (fw *FixedWindow) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	if n <= 0 {
		n = 1
	}

	current, ttl, err := fw.store.IncrementAndGet(ctx, fw.prefix+key, n, fw.window)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	return fw.result(current, ttl, current <= int64(fw.limit)), nil
}

// Status returns the current window state without counting a request.
func (fw *FixedWindow) Status(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	current, ttl, err := fw.store.Get(ctx, fw.prefix+key)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	return fw.result(current, ttl, current < int64(fw.limit)), nil
}

// Reset drops the current window for the given key.
func (fw *FixedWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return fw.store.Delete(ctx, fw.prefix+key)
}

func (fw *FixedWindow) result(current int64, ttl time.Duration, allowed bool) *Result {
	if ttl <= 0 {
		ttl = fw.window
	}
	return &Result{
		Allowed:   allowed,
		Limit:     fw.limit,
		Remaining: max(0, fw.limit-int(current)),
		ResetAt:   time.Now().Add(ttl),
	}
}
