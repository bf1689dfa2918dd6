// Package logger provides a context-aware wrapper around log/slog with
// functional options, attribute helpers, and transparent injection of values
// stored in context.Context.
//
// New builds a *slog.Logger from a set of Option values: output format (text
// or json), minimum level, static attributes applied to every record, and
// ContextExtractor callbacks that add attributes pulled from the context on
// every Handle call.
//
// Attribute helpers such as JobID, QueueType, WorkerID and Error keep key names
// consistent across the engine, the HTTP API and processors.
//
// # Job-scoped logging
//
// The job dispatcher stores the job identity in the processor context with
// WithJob. A logger created with WithJobContext (or any logger using the
// JobExtractor) then tags every record logged with that context:
//
//	log := logger.New(logger.WithProduction("jobengine"), logger.WithJobContext())
//
//	func process(ctx context.Context, job *jobqueue.Job) (any, error) {
//		log.InfoContext(ctx, "rendering invoice") // carries job_id and queue_type
//		...
//	}
package logger
