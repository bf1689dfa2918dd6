// Package jobqueue is an in-process job queue and scheduling engine.
//
// A Manager owns a set of named queues. Each queue has its own concurrency
// ceiling, fixed-window rate limit, retry policy with exponential backoff and
// an optional dead-letter designation. Jobs are dispatched to the Processor
// registered for their queue type; queues without one use a no-op processor
// that returns {"processed": true, "jobId": "<id>"}.
//
// # Lifecycle
//
// New creates a stopped Manager. Queues, processors and jobs can be set up
// before Start; nothing runs in the background until then.
//
//	m := jobqueue.New(jobqueue.WithLogger(log))
//	_, _ = m.CreateQueue(jobqueue.QueueEmail,
//		jobqueue.WithConcurrency(4),
//		jobqueue.WithRateLimit(100, time.Minute),
//		jobqueue.WithDeadLetter("email-dlq"),
//	)
//	_ = m.RegisterProcessor(jobqueue.QueueEmail, jobqueue.NewProcessor(sendEmail))
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(m.Run(ctx))
//
// # Dispatch
//
// Every queue has one dispatcher goroutine. It is woken by a signal whenever a
// job arrives, an attempt finishes, the queue is resumed, a backoff timer
// fires or a delayed job becomes due. On each wake it starts PENDING jobs in
// priority order (CRITICAL, HIGH, NORMAL, LOW; FIFO within a priority) until
// the queue is paused or inactive, or has ProcessingCount == Concurrency.
//
// Each attempt races the processor against the job timeout. Failed attempts
// are retried after min(Base × Multiplier^(attempts−1), Max) while attempts
// remain; afterwards the job is FAILED, and DEAD in the dead-letter store
// when the queue has a dead-letter designation. RetryJob and
// ReprocessDeadLetterJob bring such jobs back with their attempts reset.
//
// # Job states
//
//	QUEUED ──► PENDING ──► PROCESSING ──► COMPLETED
//	  │           ▲  │          │
//	  │           │  │          ├──► RETRYING ──► PENDING
//	  │           │  │          └──► FAILED ──► DEAD
//	  └───────────┴──┴──► CANCELLED        (retry/reprocess ──► PENDING)
//
// Cancellation never preempts: PROCESSING jobs cannot be cancelled.
//
// # Workers
//
// Workers are logical identities tracked by heartbeat. They report which job
// they are working on but do not take part in dispatch. A periodic sweep marks
// workers that stop sending heartbeats as STOPPED.
//
// # Observability
//
// Subscribe delivers Event notifications (queue.*, job.*, worker.*,
// deadletter.cleared) without ever blocking the engine. GetStats returns an
// aggregate snapshot, and OpenTelemetry instruments record attempt durations,
// outcomes, dead-lettered jobs and rate-limit rejections.
package jobqueue
