package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Processor executes jobs of one queue type. The returned value is stored as
// the job's JSON result; a non-nil error fails the attempt.
type Processor interface {
	Process(ctx context.Context, job *Job) (any, error)
}

// ProcessorFunc adapts a plain function to Processor.
type ProcessorFunc func(ctx context.Context, job *Job) (any, error)

func (f ProcessorFunc) Process(ctx context.Context, job *Job) (any, error) {
	return f(ctx, job)
}

// TypedProcessorFunc receives the job payload decoded into T.
type TypedProcessorFunc[T any] func(ctx context.Context, job *Job, payload T) (any, error)

// NewProcessor returns a Processor that decodes the JSON payload into T
// before calling fn. Decoding failures fail the attempt.
func NewProcessor[T any](fn TypedProcessorFunc[T]) Processor {
	return ProcessorFunc(func(ctx context.Context, job *Job) (any, error) {
		var payload T
		if len(job.Payload) > 0 {
			if err := json.Unmarshal(job.Payload, &payload); err != nil {
				return nil, fmt.Errorf("decode payload: %w", err)
			}
		}
		return fn(ctx, job, payload)
	})
}

// DefaultResult is what the fallback processor returns.
type DefaultResult struct {
	Processed bool      `json:"processed"`
	JobID     uuid.UUID `json:"jobId"`
}

// defaultProcessor acknowledges every job without doing any work.
var defaultProcessor = ProcessorFunc(func(_ context.Context, job *Job) (any, error) {
	return DefaultResult{Processed: true, JobID: job.ID}, nil
})

// RegisterProcessor binds p to queueType, replacing any earlier binding.
// The queue does not need to exist yet.
func (m *Manager) RegisterProcessor(queueType QueueType, p Processor) error {
	if queueType == "" {
		return ErrInvalidQueueType
	}
	if p == nil {
		return fmt.Errorf("%w: nil processor", ErrInvalidConfig)
	}

	m.procMu.Lock()
	m.processors[queueType] = p
	m.procMu.Unlock()
	return nil
}

// RegisterProcessorFunc is RegisterProcessor for plain functions.
func (m *Manager) RegisterProcessorFunc(queueType QueueType, fn func(ctx context.Context, job *Job) (any, error)) error {
	if fn == nil {
		return fmt.Errorf("%w: nil processor", ErrInvalidConfig)
	}
	return m.RegisterProcessor(queueType, ProcessorFunc(fn))
}

func (m *Manager) processorFor(queueType QueueType) Processor {
	m.procMu.RLock()
	defer m.procMu.RUnlock()

	if p, ok := m.processors[queueType]; ok {
		return p
	}
	return m.defaultProcessor
}

func encodeResult(v any) (json.RawMessage, error) {
	switch r := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if !json.Valid(r) {
			return nil, fmt.Errorf("invalid JSON result")
		}
		return r, nil
	default:
		return json.Marshal(v)
	}
}

func encodePayload(v any) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	switch p := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		data = p
	case []byte:
		data = p
	default:
		data, err = json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	}
	if !json.Valid(data) {
		return nil, ErrInvalidPayload
	}
	return data, nil
}
