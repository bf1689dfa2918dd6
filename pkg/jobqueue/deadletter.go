package jobqueue

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/jobengine/pkg/logger"
)

type deadLetter struct {
	job *Job
}

// deadLetterStore holds DEAD jobs. A job lives either here or in its queue,
// never both.
type deadLetterStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*deadLetter
}

func newDeadLetterStore() *deadLetterStore {
	return &deadLetterStore{entries: make(map[uuid.UUID]*deadLetter)}
}

func (s *deadLetterStore) put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[job.ID] = &deadLetter{job: job}
}

func (s *deadLetterStore) restore(rec *deadLetter) {
	rec.job.Status = JobDead
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[rec.job.ID] = rec
}

func (s *deadLetterStore) take(id uuid.UUID) (*deadLetter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	return rec, ok
}

func (s *deadLetterStore) get(id uuid.UUID) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return rec.job.clone(), true
}

// list returns DEAD jobs of queueType (all when empty) in submission order.
func (s *deadLetterStore) list(queueType QueueType) []*Job {
	s.mu.RLock()
	out := make([]*Job, 0, len(s.entries))
	for _, rec := range s.entries {
		if queueType == "" || rec.job.QueueType == queueType {
			out = append(out, rec.job.clone())
		}
	}
	s.mu.RUnlock()
	return sortJobs(out)
}

func (s *deadLetterStore) clear(queueType QueueType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.entries {
		if queueType == "" || rec.job.QueueType == queueType {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

func (s *deadLetterStore) countByQueue() map[QueueType]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[QueueType]int)
	for _, rec := range s.entries {
		out[rec.job.QueueType]++
	}
	return out
}

// GetDeadLetterJobs lists DEAD jobs, optionally restricted to one queue type.
func (m *Manager) GetDeadLetterJobs(queueType QueueType) []*Job {
	return m.deadLetters.list(queueType)
}

// ReprocessDeadLetterJob is RetryJob for a DEAD job.
func (m *Manager) ReprocessDeadLetterJob(id uuid.UUID) (*Job, error) {
	if _, ok := m.deadLetters.get(id); !ok {
		return nil, ErrJobNotFound
	}
	return m.RetryJob(id)
}

// ClearDeadLetterQueue drops DEAD jobs, optionally restricted to one queue
// type, and returns how many were removed.
func (m *Manager) ClearDeadLetterQueue(queueType QueueType) int {
	n := m.deadLetters.clear(queueType)

	m.logger.Info("dead-letter store cleared", logger.QueueType(string(queueType)), slog.Int("removed", n))
	m.emit(Event{Type: EventDeadLetterCleared, QueueType: queueType, Count: n})
	return n
}
