package jobqueue

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/jobengine/pkg/logger"
	"github.com/dmitrymomot/jobengine/pkg/ratelimit"
)

// CreateQueue registers a queue for queueType with zeroed counters. It fails
// with ErrQueueAlreadyExists if the type is taken.
func (m *Manager) CreateQueue(queueType QueueType, opts ...QueueOption) (*Queue, error) {
	if strings.TrimSpace(string(queueType)) == "" {
		return nil, ErrInvalidQueueType
	}

	cfg := defaultQueueConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("queue %s: %w", queueType, err)
	}

	var limiter *ratelimit.FixedWindow
	if cfg.rateLimit != nil {
		var err error
		limiter, err = ratelimit.NewFixedWindow(m.rateStore, cfg.rateLimit.Limit, cfg.rateLimit.Period,
			ratelimit.WithKeyPrefix("jobqueue:"))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	now := time.Now()
	q := Queue{
		ID:                 uuid.New(),
		Type:               queueType,
		Concurrency:        cfg.concurrency,
		RateLimit:          cfg.rateLimit,
		DefaultPriority:    cfg.priority,
		DefaultTimeout:     cfg.timeout,
		DefaultMaxAttempts: cfg.maxAttempts,
		Backoff:            cfg.backoff,
		RetryOnFail:        cfg.retryOnFail,
		DeadLetterQueue:    cfg.deadLetter,
		Paused:             cfg.paused,
		Active:             cfg.active,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	qs := newQueueState(q, limiter)

	m.mu.Lock()
	if _, exists := m.queues[queueType]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrQueueAlreadyExists, queueType)
	}
	m.queues[queueType] = qs
	m.queueIDs[q.ID] = qs
	m.emit(newQueueEvent(EventQueueCreated, &q))
	if m.running {
		m.startLoop(qs)
	}
	m.mu.Unlock()

	m.logger.Info("queue created",
		logger.QueueID(q.ID),
		logger.QueueType(string(queueType)),
		slog.Int("concurrency", q.Concurrency))

	return q.clone(), nil
}

// GetQueue returns a snapshot of the queue with the given id.
func (m *Manager) GetQueue(id uuid.UUID) (*Queue, error) {
	qs, err := m.queueByID(id)
	if err != nil {
		return nil, err
	}
	return qs.snapshot(), nil
}

// GetQueueByType returns a snapshot of the queue registered for queueType.
func (m *Manager) GetQueueByType(queueType QueueType) (*Queue, error) {
	qs, err := m.queueByType(queueType)
	if err != nil {
		return nil, err
	}
	return qs.snapshot(), nil
}

// GetAllQueues returns every queue ordered by creation time.
func (m *Manager) GetAllQueues() []*Queue {
	states := m.allQueues()
	out := make([]*Queue, 0, len(states))
	for _, qs := range states {
		out = append(out, qs.snapshot())
	}
	slices.SortFunc(out, func(a, b *Queue) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.Type), string(b.Type))
	})
	return out
}

// PauseQueue stops dispatching from the queue. Running jobs are unaffected
// and submissions are still accepted.
func (m *Manager) PauseQueue(id uuid.UUID) (*Queue, error) {
	return m.setPaused(id, true)
}

// ResumeQueue restarts dispatching from a paused queue.
func (m *Manager) ResumeQueue(id uuid.UUID) (*Queue, error) {
	return m.setPaused(id, false)
}

func (m *Manager) setPaused(id uuid.UUID, paused bool) (*Queue, error) {
	qs, err := m.queueByID(id)
	if err != nil {
		return nil, err
	}

	evType, msg := EventQueuePaused, "queue paused"
	if !paused {
		evType, msg = EventQueueResumed, "queue resumed"
	}

	qs.mu.Lock()
	qs.queue.Paused = paused
	qs.queue.UpdatedAt = time.Now()
	q := qs.queue.clone()
	m.emit(newQueueEvent(evType, q))
	qs.mu.Unlock()

	if !paused {
		qs.signal()
	}
	m.logger.Info(msg, logger.QueueType(string(q.Type)))

	return q, nil
}

// SetQueueActive toggles whether the queue accepts submissions and
// dispatches work.
func (m *Manager) SetQueueActive(id uuid.UUID, active bool) (*Queue, error) {
	qs, err := m.queueByID(id)
	if err != nil {
		return nil, err
	}

	qs.mu.Lock()
	qs.queue.Active = active
	qs.queue.UpdatedAt = time.Now()
	q := qs.queue.clone()
	qs.mu.Unlock()

	if active {
		qs.signal()
	}
	m.logger.Info("queue activity changed", logger.QueueType(string(q.Type)), slog.Bool("active", active))
	return q, nil
}

// ClearQueue removes the queue's PENDING jobs and returns how many were
// removed. Jobs in any other status are kept.
func (m *Manager) ClearQueue(id uuid.UUID) (int, error) {
	qs, err := m.queueByID(id)
	if err != nil {
		return 0, err
	}

	qs.mu.Lock()
	removed := 0
	for jobID, e := range qs.entries {
		if e.job.Status != JobPending {
			continue
		}
		qs.pending.remove(e)
		delete(qs.entries, jobID)
		m.unindexJob(jobID)
		removed++
	}
	qs.queue.JobCount = max(qs.queue.JobCount-removed, 0)
	qs.queue.UpdatedAt = time.Now()
	q := qs.queue.clone()
	ev := newQueueEvent(EventQueueCleared, q)
	ev.Count = removed
	m.emit(ev)
	qs.mu.Unlock()

	m.logger.Info("queue cleared", logger.QueueType(string(q.Type)), slog.Int("removed", removed))

	return removed, nil
}

// DeleteQueue unregisters the queue. It fails with ErrQueueHasActiveJobs
// while any of its jobs is PENDING, QUEUED, PROCESSING or RETRYING.
func (m *Manager) DeleteQueue(id uuid.UUID) error {
	m.mu.Lock()
	qs, ok := m.queueIDs[id]
	if !ok {
		m.mu.Unlock()
		return ErrQueueNotFound
	}

	qs.mu.Lock()
	for _, e := range qs.entries {
		switch e.job.Status {
		case JobPending, JobQueued, JobProcessing, JobRetrying:
			qs.mu.Unlock()
			m.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrQueueHasActiveJobs, qs.queue.Type)
		}
	}
	qs.deleted = true
	for jobID := range qs.entries {
		m.unindexJob(jobID)
	}
	q := qs.queue.clone()
	qs.mu.Unlock()

	delete(m.queues, q.Type)
	delete(m.queueIDs, id)
	close(qs.done)
	m.emit(newQueueEvent(EventQueueDeleted, q))
	m.mu.Unlock()

	if qs.limiter != nil {
		if err := qs.limiter.Reset(context.Background(), string(q.Type)); err != nil {
			m.logger.Warn("failed to reset queue rate limit", logger.QueueType(string(q.Type)), logger.Error(err))
		}
	}

	m.logger.Info("queue deleted", logger.QueueType(string(q.Type)))

	return nil
}

func (qs *queueState) snapshot() *Queue {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return qs.queue.clone()
}
