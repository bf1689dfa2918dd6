package jobqueue

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error returned by the Manager matches one of these
// with errors.Is.
var (
	ErrNotFound          = errors.New("jobqueue: not found")
	ErrInvalidState      = errors.New("jobqueue: invalid state")
	ErrQueueInactive     = errors.New("jobqueue: queue is inactive")
	ErrRateLimitExceeded = errors.New("jobqueue: rate limit exceeded")
	ErrTimeout           = errors.New("jobqueue: processing timed out")
	ErrProcessing        = errors.New("jobqueue: processing failed")
	ErrInvalidConfig     = errors.New("jobqueue: invalid configuration")
)

var (
	ErrQueueNotFound  = fmt.Errorf("%w: queue", ErrNotFound)
	ErrJobNotFound    = fmt.Errorf("%w: job", ErrNotFound)
	ErrWorkerNotFound = fmt.Errorf("%w: worker", ErrNotFound)

	ErrQueueAlreadyExists = fmt.Errorf("%w: queue already exists", ErrInvalidState)
	ErrQueueHasActiveJobs = fmt.Errorf("%w: queue has live jobs", ErrInvalidState)
	ErrJobNotCancellable  = fmt.Errorf("%w: job cannot be cancelled", ErrInvalidState)
	ErrJobNotRetryable    = fmt.Errorf("%w: job is neither failed nor dead", ErrInvalidState)
	ErrJobNotProcessing   = fmt.Errorf("%w: job is not processing", ErrInvalidState)
	ErrWorkerBusy         = fmt.Errorf("%w: worker is busy", ErrInvalidState)
	ErrWorkerStopped      = fmt.Errorf("%w: worker is stopping or stopped", ErrInvalidState)
	ErrAlreadyStarted     = fmt.Errorf("%w: manager already started", ErrInvalidState)
	ErrNotStarted         = fmt.Errorf("%w: manager not started", ErrInvalidState)

	ErrInvalidQueueType = fmt.Errorf("%w: queue type is required", ErrInvalidConfig)
	ErrInvalidPriority  = fmt.Errorf("%w: unknown priority", ErrInvalidConfig)
	ErrInvalidProgress  = fmt.Errorf("%w: progress must be between 0 and 100", ErrInvalidConfig)
	ErrInvalidPayload   = fmt.Errorf("%w: payload is not JSON encodable", ErrInvalidConfig)
	ErrWorkerNameEmpty  = fmt.Errorf("%w: worker name is required", ErrInvalidConfig)

	ErrShutdownTimeout = errors.New("jobqueue: in-flight jobs did not finish before shutdown deadline")
)
