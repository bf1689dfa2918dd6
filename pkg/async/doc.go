// Package async runs a computation in its own goroutine and hands back a
// Future that can be awaited with or without a deadline.
//
// The job dispatcher uses it to race a processor against the job timeout: the
// processor keeps running in the background if it ignores its context, but the
// caller stops waiting as soon as the deadline fires.
//
// # Usage
//
//	future := async.Async(ctx, job, func(ctx context.Context, j *Job) (Result, error) {
//		return process(ctx, j)
//	})
//
//	res, err := future.AwaitWithTimeout(30 * time.Second)
//	if errors.Is(err, async.ErrTimeout) {
//		// processor is still running; its result will be discarded
//	}
//
// A panic inside the function is recovered and reported as an error wrapping
// ErrPanic, so a misbehaving callback never takes the process down.
package async
