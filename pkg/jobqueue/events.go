package jobqueue

import (
	"context"
	"time"

	"github.com/dmitrymomot/jobengine/pkg/broadcast"
)

// EventType names a notification published by the Manager.
type EventType string

const (
	EventQueueCreated EventType = "queue.created"
	EventQueuePaused  EventType = "queue.paused"
	EventQueueResumed EventType = "queue.resumed"
	EventQueueCleared EventType = "queue.cleared"
	EventQueueDeleted EventType = "queue.deleted"

	EventJobAdded     EventType = "job.added"
	EventJobStarted   EventType = "job.started"
	EventJobProgress  EventType = "job.progress"
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"
	EventJobRetrying  EventType = "job.retrying"
	EventJobRetried   EventType = "job.retried"
	EventJobDead      EventType = "job.dead"
	EventJobCancelled EventType = "job.cancelled"

	EventWorkerRegistered EventType = "worker.registered"
	EventWorkerStopped    EventType = "worker.stopped"
	EventWorkerRemoved    EventType = "worker.removed"

	EventDeadLetterCleared EventType = "deadletter.cleared"
)

// Event is a fire-and-forget notification. Only the fields relevant to the
// event type are set; Queue, Job and Worker are snapshots.
type Event struct {
	Type      EventType `json:"type"`
	QueueType QueueType `json:"queue_type,omitempty"`
	Queue     *Queue    `json:"queue,omitempty"`
	Job       *Job      `json:"job,omitempty"`
	Worker    *Worker   `json:"worker,omitempty"`
	Count     int       `json:"count,omitempty"`
	At        time.Time `json:"at"`
}

// Subscribe returns a subscription to every event published after the call.
// Slow subscribers miss events instead of blocking the engine. Events about
// one job, queue or worker arrive in the order the changes were made. The
// subscription ends when ctx is done or Close is called.
//
// Filters passed with broadcast.WithFilter run while engine locks are held
// and must not call back into the Manager.
func (m *Manager) Subscribe(ctx context.Context, opts ...broadcast.SubscribeOption[Event]) broadcast.Subscriber[Event] {
	return m.events.Subscribe(ctx, opts...)
}

// OnlyEvents filters a subscription down to the given event types.
func OnlyEvents(types ...EventType) broadcast.SubscribeOption[Event] {
	set := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return broadcast.WithFilter(func(e Event) bool {
		_, ok := set[e.Type]
		return ok
	})
}

func (m *Manager) emit(events ...Event) {
	for _, e := range events {
		if e.At.IsZero() {
			e.At = time.Now()
		}
		// Errors only mean the broadcaster was closed.
		_ = m.events.Broadcast(context.Background(), broadcast.Message[Event]{Data: e})
	}
}

func newJobEvent(t EventType, j *Job) Event {
	return Event{Type: t, QueueType: j.QueueType, Job: j.clone()}
}

func newQueueEvent(t EventType, q *Queue) Event {
	return Event{Type: t, QueueType: q.Type, Queue: q.clone()}
}
