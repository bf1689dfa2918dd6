package jobqueue

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/jobengine/pkg/logger"
)

// AddJob submits payload to the queue registered for queueType. Payloads are
// stored as JSON; json.RawMessage and []byte are taken verbatim.
//
// Checks run in order: the queue must exist (ErrQueueNotFound), be active
// (ErrQueueInactive) and admit the submission under its rate limit
// (ErrRateLimitExceeded). Jobs with a future delay or schedule start QUEUED,
// all others PENDING.
func (m *Manager) AddJob(ctx context.Context, queueType QueueType, payload any, opts ...JobOption) (*Job, error) {
	qs, err := m.queueByType(queueType)
	if err != nil {
		return nil, err
	}

	qs.mu.Lock()
	q := qs.queue
	qs.mu.Unlock()

	if !q.Active {
		return nil, fmt.Errorf("%w: %s", ErrQueueInactive, queueType)
	}

	var cfg jobConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	data, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	if qs.limiter != nil {
		res, err := qs.limiter.Allow(ctx, string(queueType))
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		if !res.Allowed {
			m.metrics.recordRejection(ctx, queueType)
			return nil, fmt.Errorf("%w: %s, retry after %s",
				ErrRateLimitExceeded, queueType, res.RetryAfter().Round(time.Millisecond))
		}
	}

	now := time.Now()
	job := &Job{
		ID:             uuid.New(),
		QueueType:      queueType,
		Status:         JobPending,
		Priority:       cmp.Or(cfg.priority, q.DefaultPriority),
		Payload:        data,
		MaxAttempts:    cmp.Or(cfg.maxAttempts, q.DefaultMaxAttempts),
		Backoff:        q.Backoff,
		Timeout:        q.DefaultTimeout,
		OrganizationID: cfg.organization,
		Tags:           slices.Clone(cfg.tags),
		Metadata:       maps.Clone(cfg.metadata),
		CreatedAt:      now,
		UpdatedAt:      now,
		seq:            m.seq.Add(1),
	}
	if cfg.timeout != nil {
		job.Timeout = *cfg.timeout
	}
	if cfg.backoff != nil {
		job.Backoff = cfg.backoff.orDefault(q.Backoff)
	}

	var runAt time.Time
	switch {
	case cfg.scheduledAt != nil:
		runAt = *cfg.scheduledAt
	case cfg.delay > 0:
		runAt = now.Add(cfg.delay)
	}
	if !runAt.IsZero() {
		job.ScheduledAt = &runAt
		if runAt.After(now) {
			job.Status = JobQueued
		}
	}

	e := &jobEntry{job: job, index: -1}

	qs.mu.Lock()
	if qs.deleted {
		qs.mu.Unlock()
		return nil, ErrQueueNotFound
	}
	qs.entries[job.ID] = e
	m.indexJob(job.ID, qs)
	qs.queue.JobCount++
	qs.queue.UpdatedAt = now
	if job.Status == JobQueued {
		e.timer = time.AfterFunc(runAt.Sub(now), func() { m.promote(qs, job.ID) })
	} else {
		qs.pending.push(e)
	}
	snapshot := job.clone()
	m.emit(newJobEvent(EventJobAdded, snapshot))
	qs.mu.Unlock()

	m.logger.DebugContext(ctx, "job added",
		logger.JobID(snapshot.ID),
		logger.QueueType(string(queueType)),
		logger.Status(string(snapshot.Status)),
		slog.String("priority", string(snapshot.Priority)),
		logger.OrganizationID(snapshot.OrganizationID))

	if snapshot.Status == JobPending {
		qs.signal()
	}
	return snapshot, nil
}

// GetJob returns a snapshot of the job, looking in the Job Store first and
// then in the dead-letter store.
func (m *Manager) GetJob(id uuid.UUID) (*Job, error) {
	if qs, ok := m.jobOwner(id); ok {
		qs.mu.Lock()
		e, ok := qs.entries[id]
		var job *Job
		if ok {
			job = e.job.clone()
		}
		qs.mu.Unlock()
		if job != nil {
			return job, nil
		}
	}
	if job, ok := m.deadLetters.get(id); ok {
		return job, nil
	}
	return nil, ErrJobNotFound
}

// GetJobsByQueue returns the jobs owned by the queue for queueType in submission order.
func (m *Manager) GetJobsByQueue(queueType QueueType) ([]*Job, error) {
	qs, err := m.queueByType(queueType)
	if err != nil {
		return nil, err
	}
	return sortJobs(qs.collect(func(*Job) bool { return true })), nil
}

// GetJobsByStatus returns every job in status in submission order. DEAD jobs come
// from the dead-letter store.
func (m *Manager) GetJobsByStatus(status JobStatus) []*Job {
	if status == JobDead {
		return m.deadLetters.list("")
	}
	return m.collectJobs(func(j *Job) bool { return j.Status == status })
}

// GetJobsByOrganization returns every job tagged with organizationID in submission order.
func (m *Manager) GetJobsByOrganization(organizationID string) []*Job {
	match := func(j *Job) bool { return j.OrganizationID == organizationID }
	jobs := m.collectJobs(match)
	for _, j := range m.deadLetters.list("") {
		if match(j) {
			jobs = append(jobs, j)
		}
	}
	return sortJobs(jobs)
}

// UpdateJobProgress records progress (0 to 100) on a PROCESSING job.
func (m *Manager) UpdateJobProgress(id uuid.UUID, progress int) (*Job, error) {
	if progress < 0 || progress > 100 {
		return nil, ErrInvalidProgress
	}

	snapshot, err := m.mutateJob(id, func(_ *queueState, e *jobEntry) error {
		if e.job.Status != JobProcessing {
			return fmt.Errorf("%w: status %s", ErrJobNotProcessing, e.job.Status)
		}
		e.job.Progress = progress
		e.job.UpdatedAt = time.Now()
		m.emit(newJobEvent(EventJobProgress, e.job))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// CancelJob cancels a PENDING, QUEUED or RETRYING job. Running jobs are never
// preempted: cancelling a PROCESSING job fails with ErrJobNotCancellable.
func (m *Manager) CancelJob(id uuid.UUID) (*Job, error) {
	snapshot, err := m.mutateJob(id, func(qs *queueState, e *jobEntry) error {
		from := e.job.Status
		if !advance(e.job, jobCancel) {
			return fmt.Errorf("%w: status %s", ErrJobNotCancellable, from)
		}
		if from == JobPending {
			qs.pending.remove(e)
		}
		e.stopTimer()
		now := time.Now()
		e.job.CancelledAt = &now
		e.job.NextRetryAt = nil
		e.job.UpdatedAt = now
		m.emit(newJobEvent(EventJobCancelled, e.job))
		return nil
	})
	if err != nil {
		if _, dead := m.deadLetters.get(id); dead {
			return nil, fmt.Errorf("%w: status %s", ErrJobNotCancellable, JobDead)
		}
		return nil, err
	}

	m.logger.Info("job cancelled", logger.JobID(id), logger.QueueType(string(snapshot.QueueType)))
	return snapshot, nil
}

// RetryJob sends a FAILED or DEAD job back to PENDING with its attempts
// reset. DEAD jobs leave the dead-letter store and rejoin their queue.
func (m *Manager) RetryJob(id uuid.UUID) (*Job, error) {
	if _, ok := m.deadLetters.get(id); ok {
		return m.reviveDead(id)
	}

	var owner *queueState
	snapshot, err := m.mutateJob(id, func(qs *queueState, e *jobEntry) error {
		from := e.job.Status
		if !advance(e.job, jobReprocess) {
			return fmt.Errorf("%w: status %s", ErrJobNotRetryable, from)
		}
		resetForRetry(e.job)
		qs.pending.push(e)
		owner = qs
		m.emit(newJobEvent(EventJobRetried, e.job))
		return nil
	})
	if err != nil {
		return nil, err
	}

	owner.signal()
	m.logger.Info("job retried", logger.JobID(id), logger.QueueType(string(snapshot.QueueType)))
	return snapshot, nil
}

func (m *Manager) reviveDead(id uuid.UUID) (*Job, error) {
	rec, ok := m.deadLetters.take(id)
	if !ok {
		return nil, ErrJobNotFound
	}

	qs, err := m.queueByType(rec.job.QueueType)
	if err != nil {
		m.deadLetters.restore(rec)
		return nil, fmt.Errorf("reprocess job %s: %w", id, err)
	}

	qs.mu.Lock()
	if qs.deleted {
		qs.mu.Unlock()
		m.deadLetters.restore(rec)
		return nil, fmt.Errorf("reprocess job %s: %w", id, ErrQueueNotFound)
	}
	advance(rec.job, jobReprocess)
	resetForRetry(rec.job)
	e := &jobEntry{job: rec.job, index: -1}
	qs.entries[id] = e
	m.indexJob(id, qs)
	qs.pending.push(e)
	snapshot := e.job.clone()
	m.emit(newJobEvent(EventJobRetried, snapshot))
	qs.mu.Unlock()

	qs.signal()
	m.logger.Info("dead-letter job reprocessed", logger.JobID(id), logger.QueueType(string(snapshot.QueueType)))
	return snapshot, nil
}

func resetForRetry(job *Job) {
	job.Attempts = 0
	job.Progress = 0
	job.Error = ""
	job.Result = nil
	job.FailedAt = nil
	job.NextRetryAt = nil
	job.StartedAt = nil
	job.UpdatedAt = time.Now()
}

// mutateJob runs fn on the job under its queue lock and returns a snapshot
// taken after fn.
func (m *Manager) mutateJob(id uuid.UUID, fn func(qs *queueState, e *jobEntry) error) (*Job, error) {
	qs, ok := m.jobOwner(id)
	if !ok {
		return nil, ErrJobNotFound
	}

	qs.mu.Lock()
	defer qs.mu.Unlock()

	e, ok := qs.entries[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if err := fn(qs, e); err != nil {
		return nil, err
	}
	return e.job.clone(), nil
}

func (qs *queueState) collect(match func(*Job) bool) []*Job {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	out := make([]*Job, 0, len(qs.entries))
	for _, e := range qs.entries {
		if match(e.job) {
			out = append(out, e.job.clone())
		}
	}
	return out
}

func (m *Manager) collectJobs(match func(*Job) bool) []*Job {
	var out []*Job
	for _, qs := range m.allQueues() {
		out = append(out, qs.collect(match)...)
	}
	return sortJobs(out)
}

func sortJobs(jobs []*Job) []*Job {
	slices.SortFunc(jobs, func(a, b *Job) int { return cmp.Compare(a.seq, b.seq) })
	return jobs
}
