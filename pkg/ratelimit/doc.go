// Package ratelimit provides fixed-window admission control with pluggable
// counter storage.
//
// A FixedWindow limiter counts admissions per key inside a window of a fixed
// length. The first request after the window has elapsed (or the very first
// request for a key) starts a new window with a count of one; every later
// request increments the counter and is admitted only while the counter stays
// within the limit. The window is reset wholesale, so a burst at the end of one
// window followed by a burst at the start of the next can admit up to twice the
// limit in a short period. That behaviour is intentional and reproducible.
//
// # Storage
//
// Counters live behind the Store interface:
//
//   - MemoryStore keeps counters in process memory.
//   - RedisStore keeps counters in Redis using an atomic INCRBY/PEXPIRE script,
//     so several limiters (or processes) can share one window per key.
//
// # Usage
//
//	store := ratelimit.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimit.NewFixedWindow(store, 100, time.Minute)
//	if err != nil {
//		return err
//	}
//
//	res, err := limiter.Allow(ctx, "queue:EMAIL")
//	if err != nil {
//		return err
//	}
//	if !res.Allowed {
//		// back off for res.RetryAfter()
//	}
package ratelimit
