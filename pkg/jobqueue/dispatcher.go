package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/jobengine/pkg/async"
	"github.com/dmitrymomot/jobengine/pkg/logger"
)

// dispatchLoop is the per-queue pull loop. It drains every eligible job, then
// sleeps until something signals the queue: a new job, a finished attempt, a
// resume, a retry timer or a delayed job becoming due.
func (m *Manager) dispatchLoop(ctx, execCtx context.Context, qs *queueState) {
	defer m.loops.Done()

	for {
		m.dispatch(execCtx, qs)

		select {
		case <-ctx.Done():
			return
		case <-qs.done:
			return
		case <-qs.wake:
		}
	}
}

// dispatch starts PENDING jobs in priority order until the queue is paused,
// inactive, at its concurrency ceiling or out of work.
func (m *Manager) dispatch(execCtx context.Context, qs *queueState) {
	proc := m.processorFor(qs.queue.Type)

	var started []*Job

	qs.mu.Lock()
	for qs.dispatchable() {
		e := qs.pending.pop()
		if !advance(e.job, jobStart) {
			continue
		}

		now := time.Now()
		e.job.Attempts++
		e.job.StartedAt = &now
		e.job.UpdatedAt = now
		e.job.Progress = 0
		qs.queue.ProcessingCount++

		snapshot := e.job.clone()
		started = append(started, snapshot)
		m.emit(newJobEvent(EventJobStarted, snapshot))

		m.inflight.Add(1)
		go m.execute(execCtx, qs, snapshot, proc)
	}
	qs.mu.Unlock()

	for _, job := range started {
		m.logger.DebugContext(execCtx, "job started",
			logger.JobID(job.ID),
			logger.QueueType(string(job.QueueType)),
			logger.Attempt(job.Attempts, job.MaxAttempts))
	}
}

// execute runs one attempt, racing the processor against the job timeout.
// A processor that ignores its context keeps running after the timeout, but
// its outcome is discarded.
func (m *Manager) execute(execCtx context.Context, qs *queueState, job *Job, proc Processor) {
	defer m.inflight.Done()

	ctx := logger.WithJob(execCtx, job.ID.String(), string(job.QueueType))
	var cancel context.CancelFunc
	if job.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	ctx, span := m.tracer.Start(ctx, "jobqueue.job.process",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("jobqueue.job.id", job.ID.String()),
			attribute.String("jobqueue.queue_type", string(job.QueueType)),
			attribute.String("jobqueue.priority", string(job.Priority)),
			attribute.Int("jobqueue.attempt", job.Attempts),
			attribute.String("jobqueue.organization_id", job.OrganizationID),
		))
	defer span.End()

	start := time.Now()
	out, err := async.Async(ctx, job, proc.Process).AwaitContext(ctx)
	elapsed := time.Since(start)

	var result json.RawMessage
	if err == nil {
		result, err = encodeResult(out)
		if err != nil {
			err = fmt.Errorf("encode result: %w", err)
		}
	}

	err = classifyError(ctx, job.Timeout, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	m.finish(ctx, qs, job.ID, result, err, elapsed)
}

func classifyError(ctx context.Context, timeout time.Duration, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, async.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	default:
		return fmt.Errorf("%w: %w", ErrProcessing, err)
	}
}

// finish records the outcome of an attempt: completion, a scheduled retry,
// or terminal failure with an optional move to the dead-letter store.
func (m *Manager) finish(ctx context.Context, qs *queueState, id uuid.UUID, result json.RawMessage, procErr error, elapsed time.Duration) {
	defer qs.signal()

	now := time.Now()
	var (
		events  []Event
		outcome string
		dead    bool
	)

	qs.mu.Lock()
	qs.queue.ProcessingCount = max(qs.queue.ProcessingCount-1, 0)
	qs.queue.UpdatedAt = now

	e, ok := qs.entries[id]
	if !ok || e.job.Status != JobProcessing {
		qs.mu.Unlock()
		return
	}
	job := e.job
	job.UpdatedAt = now
	retryOnFail := qs.queue.RetryOnFail
	deadLetter := qs.queue.DeadLetterQueue

	switch {
	case procErr == nil:
		advance(job, jobComplete)
		job.Progress = 100
		job.Result = result
		job.Error = ""
		job.CompletedAt = &now
		job.NextRetryAt = nil
		qs.queue.CompletedCount++
		outcome = outcomeCompleted
		events = append(events, newJobEvent(EventJobCompleted, job))

	case retryOnFail && job.Attempts < job.MaxAttempts:
		delay := job.Backoff.Delay(job.Attempts)
		advance(job, jobRetry)
		job.Error = procErr.Error()
		job.NextRetryAt = ptr(now.Add(delay))
		e.timer = time.AfterFunc(delay, func() { m.requeue(qs, id) })
		outcome = outcomeRetrying
		events = append(events, newJobEvent(EventJobRetrying, job))

	default:
		advance(job, jobFail)
		job.Error = procErr.Error()
		job.FailedAt = &now
		job.NextRetryAt = nil
		qs.queue.FailedCount++
		outcome = outcomeFailed
		events = append(events, newJobEvent(EventJobFailed, job))

		if deadLetter != "" {
			advance(job, jobBury)
			delete(qs.entries, id)
			m.unindexJob(id)
			m.deadLetters.put(job)
			dead = true
			events = append(events, newJobEvent(EventJobDead, job))
		}
	}
	snapshot := job.clone()
	m.emit(events...)
	qs.mu.Unlock()

	m.metrics.recordAttempt(ctx, snapshot.QueueType, outcome, elapsed)
	if outcome == outcomeCompleted {
		m.samples.record(elapsed)
	}

	attrs := []any{
		logger.JobID(snapshot.ID),
		logger.QueueType(string(snapshot.QueueType)),
		logger.Attempt(snapshot.Attempts, snapshot.MaxAttempts),
		logger.Duration(elapsed),
	}
	switch outcome {
	case outcomeCompleted:
		m.logger.DebugContext(ctx, "job completed", attrs...)
	case outcomeRetrying:
		m.logger.WarnContext(ctx, "job failed, retry scheduled",
			append(attrs, logger.Error(procErr), slog.Time("next_retry_at", *snapshot.NextRetryAt))...)
	default:
		m.logger.ErrorContext(ctx, "job failed", append(attrs, logger.Error(procErr))...)
	}
	if dead {
		m.metrics.recordDead(ctx, snapshot.QueueType)
		m.logger.WarnContext(ctx, "job moved to dead-letter store",
			logger.JobID(snapshot.ID), slog.String("dead_letter_queue", deadLetter))
	}
}

// requeue returns a RETRYING job to PENDING once its backoff has elapsed.
func (m *Manager) requeue(qs *queueState, id uuid.UUID) {
	qs.mu.Lock()
	e, ok := qs.entries[id]
	if !ok || qs.deleted {
		qs.mu.Unlock()
		return
	}
	if !advance(e.job, jobRequeue) {
		qs.mu.Unlock()
		return
	}
	e.timer = nil
	e.job.UpdatedAt = time.Now()
	qs.pending.push(e)
	qs.mu.Unlock()

	qs.signal()
}

// promote moves a QUEUED job to PENDING once its scheduled time arrives.
func (m *Manager) promote(qs *queueState, id uuid.UUID) {
	qs.mu.Lock()
	e, ok := qs.entries[id]
	if !ok || qs.deleted {
		qs.mu.Unlock()
		return
	}
	if !advance(e.job, jobPromote) {
		qs.mu.Unlock()
		return
	}
	e.timer = nil
	e.job.UpdatedAt = time.Now()
	qs.pending.push(e)
	qs.mu.Unlock()

	qs.signal()
}
