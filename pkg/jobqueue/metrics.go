package jobqueue

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instrumentationName scopes the engine meter and tracer.
const instrumentationName = "github.com/dmitrymomot/jobengine/pkg/jobqueue"

// Execution outcomes recorded on jobqueue.job.executions.
const (
	outcomeCompleted = "completed"
	outcomeRetrying  = "retrying"
	outcomeFailed    = "failed"
)

// metrics holds the engine instruments. On error the OTel API hands back
// noop instruments, so creation errors are ignored.
type metrics struct {
	duration   metric.Float64Histogram
	executions metric.Int64Counter
	dead       metric.Int64Counter
	rejections metric.Int64Counter
}

func newMetrics(meter metric.Meter) *metrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	duration, _ := meter.Float64Histogram(
		"jobqueue.job.duration",
		metric.WithDescription("Duration of job attempts in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"jobqueue.job.executions",
		metric.WithDescription("Job attempts by outcome"),
		metric.WithUnit("{execution}"),
	)
	dead, _ := meter.Int64Counter(
		"jobqueue.job.dead",
		metric.WithDescription("Jobs moved to the dead-letter store"),
		metric.WithUnit("{job}"),
	)
	rejections, _ := meter.Int64Counter(
		"jobqueue.ratelimit.rejections",
		metric.WithDescription("Submissions rejected by the queue rate limiter"),
		metric.WithUnit("{job}"),
	)

	return &metrics{
		duration:   duration,
		executions: executions,
		dead:       dead,
		rejections: rejections,
	}
}

func (mt *metrics) recordAttempt(ctx context.Context, queueType QueueType, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("queue_type", string(queueType)),
		attribute.String("outcome", outcome),
	)
	mt.duration.Record(ctx, elapsed.Seconds(), attrs)
	mt.executions.Add(ctx, 1, attrs)
}

func (mt *metrics) recordDead(ctx context.Context, queueType QueueType) {
	mt.dead.Add(ctx, 1, metric.WithAttributes(attribute.String("queue_type", string(queueType))))
}

func (mt *metrics) recordRejection(ctx context.Context, queueType QueueType) {
	mt.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("queue_type", string(queueType))))
}
