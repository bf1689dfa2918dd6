package jobqueue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/jobengine/pkg/broadcast"
	"github.com/dmitrymomot/jobengine/pkg/jobqueue"
)

// submitConcurrently adds n jobs to queueType from several goroutines.
func submitConcurrently(t *testing.T, m *jobqueue.Manager, queueType jobqueue.QueueType, n int) {
	t.Helper()

	const producers = 4
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := p; i < n; i += producers {
				if _, err := m.AddJob(context.Background(), queueType, map[string]int{"n": i}); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

// lifecycles groups job events by job id, preserving delivery order.
func lifecycles(events []jobqueue.Event) map[uuid.UUID][]jobqueue.EventType {
	out := make(map[uuid.UUID][]jobqueue.EventType)
	for _, ev := range events {
		out[ev.Job.ID] = append(out[ev.Job.ID], ev.Type)
	}
	return out
}

func TestManager_EventOrder(t *testing.T) {
	t.Parallel()

	t.Run("added then started then completed", func(t *testing.T) {
		t.Parallel()

		const jobs = 2000
		m := newManager(t)
		_, err := m.CreateQueue(jobqueue.QueueNotification, jobqueue.WithConcurrency(50))
		require.NoError(t, err)

		sub := m.Subscribe(context.Background(),
			jobqueue.OnlyEvents(jobqueue.EventJobAdded, jobqueue.EventJobStarted, jobqueue.EventJobCompleted),
			broadcast.WithBufferSize[jobqueue.Event](3*jobs))
		defer sub.Close()
		startManager(t, m)

		submitConcurrently(t, m, jobqueue.QueueNotification, jobs)

		events := collectEvents(t, sub.Receive(context.Background()), 3*jobs)
		require.Zero(t, sub.Dropped())

		want := []jobqueue.EventType{jobqueue.EventJobAdded, jobqueue.EventJobStarted, jobqueue.EventJobCompleted}
		got := lifecycles(events)
		require.Len(t, got, jobs)
		for id, seq := range got {
			assert.Equal(t, want, seq, "job %s", id)
		}
	})

	t.Run("retry attempts stay in order", func(t *testing.T) {
		t.Parallel()

		const jobs = 300
		m := newManager(t)
		_, err := m.CreateQueue(jobqueue.QueueWebhook,
			jobqueue.WithConcurrency(20),
			jobqueue.WithDefaultMaxAttempts(2),
			jobqueue.WithBackoff(jobqueue.Backoff{Base: time.Millisecond, Multiplier: 1, Max: time.Millisecond}))
		require.NoError(t, err)
		require.NoError(t, m.RegisterProcessorFunc(jobqueue.QueueWebhook, failingProcessor))

		sub := m.Subscribe(context.Background(),
			jobqueue.OnlyEvents(jobqueue.EventJobAdded, jobqueue.EventJobStarted,
				jobqueue.EventJobRetrying, jobqueue.EventJobFailed),
			broadcast.WithBufferSize[jobqueue.Event](5*jobs))
		defer sub.Close()
		startManager(t, m)

		submitConcurrently(t, m, jobqueue.QueueWebhook, jobs)

		events := collectEvents(t, sub.Receive(context.Background()), 5*jobs)
		require.Zero(t, sub.Dropped())

		want := []jobqueue.EventType{
			jobqueue.EventJobAdded,
			jobqueue.EventJobStarted,
			jobqueue.EventJobRetrying,
			jobqueue.EventJobStarted,
			jobqueue.EventJobFailed,
		}
		got := lifecycles(events)
		require.Len(t, got, jobs)
		for id, seq := range got {
			assert.Equal(t, want, seq, "job %s", id)
		}
	})

	t.Run("queue created before its first job", func(t *testing.T) {
		t.Parallel()

		m := newManager(t)
		sub := m.Subscribe(context.Background(),
			jobqueue.OnlyEvents(jobqueue.EventQueueCreated, jobqueue.EventJobAdded))
		defer sub.Close()

		ready := make(chan struct{})
		added := make(chan error, 1)
		go func() {
			<-ready
			for {
				_, err := m.AddJob(context.Background(), jobqueue.QueueReportGeneration, nil)
				if err == nil || !assert.ErrorIs(t, err, jobqueue.ErrQueueNotFound) {
					added <- err
					return
				}
				time.Sleep(time.Millisecond)
			}
		}()
		close(ready)

		_, err := m.CreateQueue(jobqueue.QueueReportGeneration)
		require.NoError(t, err)
		require.NoError(t, <-added)

		events := collectEvents(t, sub.Receive(context.Background()), 2)
		assert.Equal(t, jobqueue.EventQueueCreated, events[0].Type)
		assert.Equal(t, jobqueue.EventJobAdded, events[1].Type)
	})
}
