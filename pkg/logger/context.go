package logger

import (
	"context"
	"log/slog"
)

type jobContextKey struct{}

type jobContext struct {
	jobID     string
	queueType string
}

// WithJob stores the job identity in ctx for JobExtractor.
func WithJob(ctx context.Context, jobID, queueType string) context.Context {
	return context.WithValue(ctx, jobContextKey{}, jobContext{jobID: jobID, queueType: queueType})
}

// JobFromContext returns the job identity stored by WithJob.
func JobFromContext(ctx context.Context) (jobID, queueType string, ok bool) {
	jc, ok := ctx.Value(jobContextKey{}).(jobContext)
	if !ok {
		return "", "", false
	}
	return jc.jobID, jc.queueType, true
}

// JobExtractor adds a "job" group with job_id and queue_type when ctx carries a job.
func JobExtractor() ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		jobID, queueType, ok := JobFromContext(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		return Group("job", slog.String("id", jobID), slog.String("queue_type", queueType)), true
	}
}
