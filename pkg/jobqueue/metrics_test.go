package jobqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/dmitrymomot/jobengine/pkg/jobqueue"
)

func setupTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader, mp
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumByAttr totals an int64 counter grouped by the string value of key.
func sumByAttr(t *testing.T, rm metricdata.ResourceMetrics, name, key string) map[string]int64 {
	t.Helper()

	m := findMetric(rm, name)
	require.NotNil(t, m, "%s not recorded", name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", name)

	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		for _, attr := range dp.Attributes.ToSlice() {
			if string(attr.Key) == key {
				out[attr.Value.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestMetrics_Executions(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMeter(t)
	m := newManager(t, jobqueue.WithMeter(mp.Meter("test")))

	_, err := m.CreateQueue(jobqueue.QueueEmail)
	require.NoError(t, err)
	_, err = m.CreateQueue(jobqueue.QueueWebhook,
		jobqueue.WithDefaultMaxAttempts(2),
		jobqueue.WithBackoff(jobqueue.Backoff{Base: 5 * time.Millisecond, Multiplier: 1, Max: 5 * time.Millisecond}),
		jobqueue.WithDeadLetter("webhook-dlq"))
	require.NoError(t, err)
	require.NoError(t, m.RegisterProcessorFunc(jobqueue.QueueWebhook, failingProcessor))
	startManager(t, m)

	ok, err := m.AddJob(context.Background(), jobqueue.QueueEmail, nil)
	require.NoError(t, err)
	waitForStatus(t, m, ok.ID, jobqueue.JobCompleted)

	bad, err := m.AddJob(context.Background(), jobqueue.QueueWebhook, nil)
	require.NoError(t, err)
	waitForStatus(t, m, bad.ID, jobqueue.JobDead)

	// Metrics are recorded after the job status changes.
	var rm metricdata.ResourceMetrics
	require.Eventually(t, func() bool {
		rm = metricdata.ResourceMetrics{}
		if err := reader.Collect(context.Background(), &rm); err != nil {
			return false
		}
		return findMetric(rm, "jobqueue.job.dead") != nil && findMetric(rm, "jobqueue.job.duration") != nil
	}, waitFor, 5*time.Millisecond)

	outcomes := sumByAttr(t, rm, "jobqueue.job.executions", "outcome")
	assert.Equal(t, map[string]int64{"completed": 1, "retrying": 1, "failed": 1}, outcomes)

	byQueue := sumByAttr(t, rm, "jobqueue.job.executions", "queue_type")
	assert.Equal(t, int64(1), byQueue[string(jobqueue.QueueEmail)])
	assert.Equal(t, int64(2), byQueue[string(jobqueue.QueueWebhook)])

	dead := sumByAttr(t, rm, "jobqueue.job.dead", "queue_type")
	assert.Equal(t, map[string]int64{string(jobqueue.QueueWebhook): 1}, dead)

	durations := findMetric(rm, "jobqueue.job.duration")
	require.NotNil(t, durations)
	hist, isHist := durations.Data.(metricdata.Histogram[float64])
	require.True(t, isHist)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestMetrics_RateLimitRejections(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMeter(t)
	m := newManager(t, jobqueue.WithMeter(mp.Meter("test")))

	_, err := m.CreateQueue(jobqueue.QueueSMS, jobqueue.WithRateLimit(1, time.Hour))
	require.NoError(t, err)

	_, err = m.AddJob(context.Background(), jobqueue.QueueSMS, nil)
	require.NoError(t, err)
	_, err = m.AddJob(context.Background(), jobqueue.QueueSMS, nil)
	require.ErrorIs(t, err, jobqueue.ErrRateLimitExceeded)
	_, err = m.AddJob(context.Background(), jobqueue.QueueSMS, nil)
	require.ErrorIs(t, err, jobqueue.ErrRateLimitExceeded)

	rejections := sumByAttr(t, collectMetrics(t, reader), "jobqueue.ratelimit.rejections", "queue_type")
	assert.Equal(t, map[string]int64{string(jobqueue.QueueSMS): 2}, rejections)
}
