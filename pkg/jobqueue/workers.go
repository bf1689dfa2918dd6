package jobqueue

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/jobengine/pkg/logger"
)

// workerRegistry tracks logical workers. Workers observe the engine through
// heartbeats; they never gate dispatch.
type workerRegistry struct {
	mu      sync.RWMutex
	workers map[uuid.UUID]*Worker
}

func newWorkerRegistry() *workerRegistry {
	return &workerRegistry{workers: make(map[uuid.UUID]*Worker)}
}

// releasePollInterval is how often StopWorker re-checks the referenced job.
const releasePollInterval = 25 * time.Millisecond

// RegisterWorker creates an IDLE worker serving the given queue types.
func (m *Manager) RegisterWorker(name string, queueTypes ...QueueType) (*Worker, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrWorkerNameEmpty
	}

	now := time.Now()
	w := &Worker{
		ID:           uuid.New(),
		Name:         name,
		QueueTypes:   slices.Clone(queueTypes),
		Status:       WorkerIdle,
		StartedAt:    now,
		LastActiveAt: now,
	}

	m.workers.mu.Lock()
	m.workers.workers[w.ID] = w
	snapshot := w.clone()
	m.emit(Event{Type: EventWorkerRegistered, Worker: snapshot})
	m.workers.mu.Unlock()

	m.logger.Info("worker registered", logger.WorkerID(w.ID), slog.String("name", name))
	return snapshot, nil
}

// GetWorker returns a snapshot of the worker.
func (m *Manager) GetWorker(id uuid.UUID) (*Worker, error) {
	m.workers.mu.RLock()
	defer m.workers.mu.RUnlock()

	w, ok := m.workers.workers[id]
	if !ok {
		return nil, ErrWorkerNotFound
	}
	return w.clone(), nil
}

// GetAllWorkers returns every worker, oldest first.
func (m *Manager) GetAllWorkers() []*Worker {
	m.workers.mu.RLock()
	out := make([]*Worker, 0, len(m.workers.workers))
	for _, w := range m.workers.workers {
		out = append(out, w.clone())
	}
	m.workers.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Worker) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

// UpdateWorkerHeartbeat refreshes the worker's liveness and records the job
// it reports working on. A nil currentJobID marks the worker IDLE; otherwise
// it becomes BUSY. Each time a previously referenced job is released or
// replaced, JobsProcessed grows by one. Stopping or stopped workers are
// rejected with ErrWorkerStopped.
func (m *Manager) UpdateWorkerHeartbeat(id uuid.UUID, currentJobID *uuid.UUID) (*Worker, error) {
	if currentJobID != nil {
		if _, err := m.GetJob(*currentJobID); err != nil {
			return nil, err
		}
	}

	m.workers.mu.Lock()
	w, ok := m.workers.workers[id]
	if !ok {
		m.workers.mu.Unlock()
		return nil, ErrWorkerNotFound
	}

	ev := workerRelease
	if currentJobID != nil {
		ev = workerAssign
	}
	next, err := workerLifecycle.Next(w.Status, ev)
	if err != nil {
		status := w.Status
		m.workers.mu.Unlock()
		return nil, fmt.Errorf("%w: status %s", ErrWorkerStopped, status)
	}

	if w.CurrentJobID != nil && (currentJobID == nil || *w.CurrentJobID != *currentJobID) {
		w.JobsProcessed++
	}
	w.Status = next
	w.CurrentJobID = clonePtr(currentJobID)
	w.LastActiveAt = time.Now()
	snapshot := w.clone()
	m.workers.mu.Unlock()

	if currentJobID != nil {
		// A job that left the Job Store since the check above (dead-lettered,
		// or its queue deleted) keeps no worker reference.
		if _, err := m.mutateJob(*currentJobID, func(_ *queueState, e *jobEntry) error {
			e.job.WorkerID = ptr(id)
			return nil
		}); err != nil {
			m.logger.Debug("worker reference not recorded on job",
				logger.WorkerID(id),
				logger.JobID(*currentJobID),
				logger.Error(err))
		}
	}
	return snapshot, nil
}

// StopWorker moves the worker to STOPPING, waits up to the configured grace
// period (or until ctx is done) for its referenced job to stop processing,
// then marks it STOPPED.
func (m *Manager) StopWorker(ctx context.Context, id uuid.UUID) (*Worker, error) {
	m.workers.mu.Lock()
	w, ok := m.workers.workers[id]
	if !ok {
		m.workers.mu.Unlock()
		return nil, ErrWorkerNotFound
	}
	next, err := workerLifecycle.Next(w.Status, workerStop)
	if err != nil {
		status := w.Status
		m.workers.mu.Unlock()
		return nil, fmt.Errorf("%w: status %s", ErrWorkerStopped, status)
	}
	w.Status = next
	jobRef := clonePtr(w.CurrentJobID)
	m.workers.mu.Unlock()

	if jobRef != nil {
		m.awaitJobRelease(ctx, *jobRef)
	}

	m.workers.mu.Lock()
	w, ok = m.workers.workers[id]
	if !ok {
		m.workers.mu.Unlock()
		return nil, ErrWorkerNotFound
	}
	if next, err := workerLifecycle.Next(w.Status, workerHalt); err == nil {
		now := time.Now()
		w.Status = next
		w.StoppedAt = &now
		if w.CurrentJobID != nil {
			w.JobsProcessed++
			w.CurrentJobID = nil
		}
	}
	snapshot := w.clone()
	m.emit(Event{Type: EventWorkerStopped, Worker: snapshot})
	m.workers.mu.Unlock()

	m.logger.InfoContext(ctx, "worker stopped", logger.WorkerID(id))
	return snapshot, nil
}

// awaitJobRelease blocks until the job is no longer PROCESSING, the stop
// grace period elapses or ctx is done.
func (m *Manager) awaitJobRelease(ctx context.Context, jobID uuid.UUID) {
	grace := time.NewTimer(m.cfg.WorkerStopGrace)
	defer grace.Stop()
	ticker := time.NewTicker(releasePollInterval)
	defer ticker.Stop()

	for {
		job, err := m.GetJob(jobID)
		if err != nil || job.Status != JobProcessing {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-grace.C:
			return
		case <-ticker.C:
		}
	}
}

// RemoveWorker deletes a worker that is not BUSY.
func (m *Manager) RemoveWorker(id uuid.UUID) error {
	m.workers.mu.Lock()
	w, ok := m.workers.workers[id]
	if !ok {
		m.workers.mu.Unlock()
		return ErrWorkerNotFound
	}
	if w.Status == WorkerBusy {
		m.workers.mu.Unlock()
		return ErrWorkerBusy
	}
	delete(m.workers.workers, id)
	snapshot := w.clone()
	m.emit(Event{Type: EventWorkerRemoved, Worker: snapshot})
	m.workers.mu.Unlock()

	m.logger.Info("worker removed", logger.WorkerID(id))
	return nil
}

// sweepWorkers marks workers silent for longer than the liveness threshold
// as STOPPED.
func (m *Manager) sweepWorkers(ctx context.Context, now time.Time) {
	cutoff := now.Add(-m.cfg.LivenessThreshold)

	var expired []*Worker
	m.workers.mu.Lock()
	for _, w := range m.workers.workers {
		if !w.LastActiveAt.Before(cutoff) {
			continue
		}
		next, err := workerLifecycle.Next(w.Status, workerExpire)
		if err != nil {
			continue
		}
		w.Status = next
		w.StoppedAt = &now
		w.CurrentJobID = nil
		snapshot := w.clone()
		expired = append(expired, snapshot)
		m.emit(Event{Type: EventWorkerStopped, Worker: snapshot})
	}
	m.workers.mu.Unlock()

	for _, w := range expired {
		m.logger.WarnContext(ctx, "worker missed heartbeats, marked stopped",
			logger.WorkerID(w.ID),
			slog.String("name", w.Name),
			slog.Time("last_active_at", w.LastActiveAt))
	}
}
