package jobqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/jobengine/pkg/jobqueue"
)

func TestManager_GetStats(t *testing.T) {
	t.Parallel()

	t.Run("empty engine", func(t *testing.T) {
		t.Parallel()

		st := newManager(t).GetStats()
		assert.Zero(t, st.TotalJobs)
		assert.Empty(t, st.ByQueue)
		assert.Empty(t, st.RecentJobs)
		assert.Zero(t, st.AvgProcessingTime)
		for _, s := range jobqueue.JobStatuses {
			assert.Zero(t, st.ByStatus[s], s)
		}
		for _, p := range jobqueue.Priorities {
			assert.Zero(t, st.ByPriority[p], p)
		}
	})

	t.Run("aggregates", func(t *testing.T) {
		t.Parallel()

		m := newManager(t, jobqueue.WithRecentJobs(3))

		_, err := m.CreateQueue(jobqueue.QueueEmail)
		require.NoError(t, err)
		sms, err := m.CreateQueue(jobqueue.QueueSMS, jobqueue.WithPaused())
		require.NoError(t, err)
		_, err = m.CreateQueue(jobqueue.QueueWebhook, jobqueue.WithInactive())
		require.NoError(t, err)
		_, err = m.CreateQueue(jobqueue.QueueTaxSubmission,
			jobqueue.WithDefaultMaxAttempts(1), jobqueue.WithDeadLetter("tax-dlq"))
		require.NoError(t, err)
		require.NoError(t, m.RegisterProcessorFunc(jobqueue.QueueTaxSubmission, failingProcessor))

		startManager(t, m)

		completed, err := m.AddJob(context.Background(), jobqueue.QueueEmail, nil)
		require.NoError(t, err)
		waitForStatus(t, m, completed.ID, jobqueue.JobCompleted)

		dead, err := m.AddJob(context.Background(), jobqueue.QueueTaxSubmission, nil)
		require.NoError(t, err)
		waitForStatus(t, m, dead.ID, jobqueue.JobDead)

		_, err = m.AddJob(context.Background(), jobqueue.QueueSMS, nil, jobqueue.WithPriority(jobqueue.PriorityHigh))
		require.NoError(t, err)
		_, err = m.AddJob(context.Background(), jobqueue.QueueSMS, nil, jobqueue.WithPriority(jobqueue.PriorityHigh))
		require.NoError(t, err)
		latest, err := m.AddJob(context.Background(), jobqueue.QueueEmail, nil,
			jobqueue.WithPriority(jobqueue.PriorityLow), jobqueue.WithDelay(time.Hour))
		require.NoError(t, err)

		_, err = m.RegisterWorker("idle")
		require.NoError(t, err)
		stopped, err := m.RegisterWorker("stopped")
		require.NoError(t, err)
		_, err = m.StopWorker(context.Background(), stopped.ID)
		require.NoError(t, err)

		st := m.GetStats()

		assert.Equal(t, 5, st.TotalJobs)
		assert.Equal(t, 1, st.ByStatus[jobqueue.JobCompleted])
		assert.Equal(t, 2, st.ByStatus[jobqueue.JobPending])
		assert.Equal(t, 1, st.ByStatus[jobqueue.JobQueued])
		assert.Equal(t, 1, st.ByStatus[jobqueue.JobDead])
		assert.Equal(t, 1, st.DeadLetterJobs)

		assert.Equal(t, 2, st.ByPriority[jobqueue.PriorityHigh])
		assert.Equal(t, 1, st.ByPriority[jobqueue.PriorityLow])
		assert.Zero(t, st.ByPriority[jobqueue.PriorityNormal], "completed jobs are not counted by priority")

		assert.Equal(t, 3, st.ActiveQueues)
		assert.Equal(t, 1, st.PausedQueues)
		require.Len(t, st.ByQueue, 4)
		assert.Equal(t, 2, st.ByQueue[jobqueue.QueueEmail].Total)
		assert.Equal(t, 1, st.ByQueue[jobqueue.QueueEmail].Completed)
		assert.Equal(t, 2, st.ByQueue[jobqueue.QueueSMS].Total)
		assert.True(t, st.ByQueue[jobqueue.QueueSMS].Paused)
		assert.False(t, st.ByQueue[jobqueue.QueueWebhook].Active)
		assert.Equal(t, 1, st.ByQueue[jobqueue.QueueTaxSubmission].ByStatus[jobqueue.JobDead])
		assert.Equal(t, 1, st.ByQueue[jobqueue.QueueTaxSubmission].Failed)

		assert.Equal(t, jobqueue.WorkerStats{Total: 2, Active: 1, Idle: 1, Stopped: 1}, st.Workers)

		assert.Equal(t, 1, st.ProcessingSamples, "only successful attempts are sampled")
		assert.Positive(t, st.AvgProcessingTime)

		require.Len(t, st.RecentJobs, 3)
		assert.Equal(t, latest.ID, st.RecentJobs[0].ID)

		// Paused queue never dispatched.
		q, err := m.GetQueue(sms.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, q.JobCount)
	})
}
