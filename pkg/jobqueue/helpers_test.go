package jobqueue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/jobengine/pkg/broadcast"
	"github.com/dmitrymomot/jobengine/pkg/jobqueue"
	"github.com/dmitrymomot/jobengine/pkg/logger"
)

const waitFor = 3 * time.Second

func newManager(t *testing.T, opts ...jobqueue.Option) *jobqueue.Manager {
	t.Helper()
	return jobqueue.New(append([]jobqueue.Option{jobqueue.WithLogger(logger.Discard())}, opts...)...)
}

func startManager(t *testing.T, m *jobqueue.Manager) {
	t.Helper()
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })
}

func waitForStatus(t *testing.T, m *jobqueue.Manager, id uuid.UUID, status jobqueue.JobStatus) *jobqueue.Job {
	t.Helper()

	var job *jobqueue.Job
	require.Eventually(t, func() bool {
		j, err := m.GetJob(id)
		if err != nil {
			return false
		}
		job = j
		return j.Status == status
	}, waitFor, 5*time.Millisecond, "job %s never reached %s", id, status)
	return job
}

// collectEvents reads n events from ch or fails the test.
func collectEvents(t *testing.T, ch <-chan broadcast.Message[jobqueue.Event], n int) []jobqueue.Event {
	t.Helper()

	out := make([]jobqueue.Event, 0, n)
	timeout := time.After(waitFor)
	for len(out) < n {
		select {
		case msg, ok := <-ch:
			require.True(t, ok, "subscription closed early")
			out = append(out, msg.Data)
		case <-timeout:
			t.Fatalf("received %d of %d events", len(out), n)
		}
	}
	return out
}

// fakeClock is a settable time source for rate-limit windows.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// blockingProcessor holds every job until release is closed.
type blockingProcessor struct {
	started chan uuid.UUID
	release chan struct{}
}

func newBlockingProcessor() *blockingProcessor {
	return &blockingProcessor{
		started: make(chan uuid.UUID, 16),
		release: make(chan struct{}),
	}
}

func (p *blockingProcessor) Process(ctx context.Context, job *jobqueue.Job) (any, error) {
	p.started <- job.ID
	select {
	case <-p.release:
		return "released", nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
