package jobqueue

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QueueType names a queue. Callers may use any non-empty string; the
// constants cover the workloads the surrounding modules submit.
type QueueType string

const (
	QueueEmail             QueueType = "EMAIL"
	QueueSMS               QueueType = "SMS"
	QueuePDFGeneration     QueueType = "PDF_GENERATION"
	QueueInvoiceProcessing QueueType = "INVOICE_PROCESSING"
	QueueTaxSubmission     QueueType = "TAX_SUBMISSION"
	QueueWebhook           QueueType = "WEBHOOK"
	QueueReportGeneration  QueueType = "REPORT_GENERATION"
	QueueDataExport        QueueType = "DATA_EXPORT"
	QueueNotification      QueueType = "NOTIFICATION"
)

// Priority orders PENDING jobs within a queue.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityNormal   Priority = "NORMAL"
	PriorityLow      Priority = "LOW"
)

// Priorities lists every priority, most urgent first.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}

// Rank returns the dispatch rank; lower runs first. Unknown priorities rank last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return len(Priorities)
	}
}

func (p Priority) Valid() bool {
	return p.Rank() < len(Priorities)
}

// ParsePriority accepts any letter case.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", ErrInvalidPriority
	}
	return p, nil
}

// JobStatus is a position in the job lifecycle.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobQueued     JobStatus = "QUEUED"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
	JobRetrying   JobStatus = "RETRYING"
	JobCancelled  JobStatus = "CANCELLED"
	JobDead       JobStatus = "DEAD"
)

// JobStatuses lists every job status.
var JobStatuses = []JobStatus{
	JobPending, JobQueued, JobProcessing, JobCompleted,
	JobFailed, JobRetrying, JobCancelled, JobDead,
}

func (s JobStatus) Valid() bool {
	return slices.Contains(JobStatuses, s)
}

// WorkerStatus is a position in the worker lifecycle.
type WorkerStatus string

const (
	WorkerIdle     WorkerStatus = "IDLE"
	WorkerBusy     WorkerStatus = "BUSY"
	WorkerStopping WorkerStatus = "STOPPING"
	WorkerStopped  WorkerStatus = "STOPPED"
)

// RateLimit admits at most Limit jobs per fixed Period window.
type RateLimit struct {
	Limit  int           `json:"limit" yaml:"limit"`
	Period time.Duration `json:"period" yaml:"period"`
}

// Queue is a snapshot of a queue's configuration and counters.
type Queue struct {
	ID                 uuid.UUID     `json:"id"`
	Type               QueueType     `json:"type"`
	Concurrency        int           `json:"concurrency"`
	RateLimit          *RateLimit    `json:"rate_limit,omitempty"`
	DefaultPriority    Priority      `json:"default_priority"`
	DefaultTimeout     time.Duration `json:"default_timeout"`
	DefaultMaxAttempts int           `json:"default_max_attempts"`
	Backoff            Backoff       `json:"backoff"`
	RetryOnFail        bool          `json:"retry_on_fail"`
	DeadLetterQueue    string        `json:"dead_letter_queue,omitempty"`
	Paused             bool          `json:"paused"`
	Active             bool          `json:"active"`
	JobCount           int           `json:"job_count"`
	ProcessingCount    int           `json:"processing_count"`
	CompletedCount     int           `json:"completed_count"`
	FailedCount        int           `json:"failed_count"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func (q Queue) clone() *Queue {
	if q.RateLimit != nil {
		rl := *q.RateLimit
		q.RateLimit = &rl
	}
	return &q
}

// Job is a snapshot of a unit of work. The Manager hands out copies; mutating
// one has no effect on the engine.
type Job struct {
	ID             uuid.UUID         `json:"id"`
	QueueType      QueueType         `json:"queue_type"`
	Status         JobStatus         `json:"status"`
	Priority       Priority          `json:"priority"`
	Payload        json.RawMessage   `json:"payload,omitempty"`
	Attempts       int               `json:"attempts"`
	MaxAttempts    int               `json:"max_attempts"`
	Backoff        Backoff           `json:"backoff"`
	Timeout        time.Duration     `json:"timeout"`
	Progress       int               `json:"progress"`
	Result         json.RawMessage   `json:"result,omitempty"`
	Error          string            `json:"error,omitempty"`
	WorkerID       *uuid.UUID        `json:"worker_id,omitempty"`
	OrganizationID string            `json:"organization_id,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	ScheduledAt    *time.Time        `json:"scheduled_at,omitempty"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	FailedAt       *time.Time        `json:"failed_at,omitempty"`
	CancelledAt    *time.Time        `json:"cancelled_at,omitempty"`
	NextRetryAt    *time.Time        `json:"next_retry_at,omitempty"`

	seq uint64 // submission order, breaks priority and timestamp ties
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

func (j *Job) clone() *Job {
	c := *j
	c.Payload = slices.Clone(j.Payload)
	c.Result = slices.Clone(j.Result)
	c.Tags = slices.Clone(j.Tags)
	c.Metadata = maps.Clone(j.Metadata)
	c.WorkerID = clonePtr(j.WorkerID)
	c.ScheduledAt = clonePtr(j.ScheduledAt)
	c.StartedAt = clonePtr(j.StartedAt)
	c.CompletedAt = clonePtr(j.CompletedAt)
	c.FailedAt = clonePtr(j.FailedAt)
	c.CancelledAt = clonePtr(j.CancelledAt)
	c.NextRetryAt = clonePtr(j.NextRetryAt)
	return &c
}

// Worker is a snapshot of a logical, heartbeat-tracked worker identity.
type Worker struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	QueueTypes    []QueueType  `json:"queue_types"`
	Status        WorkerStatus `json:"status"`
	CurrentJobID  *uuid.UUID   `json:"current_job_id,omitempty"`
	JobsProcessed int          `json:"jobs_processed"`
	StartedAt     time.Time    `json:"started_at"`
	LastActiveAt  time.Time    `json:"last_active_at"`
	StoppedAt     *time.Time   `json:"stopped_at,omitempty"`
}

func (w *Worker) clone() *Worker {
	c := *w
	c.QueueTypes = slices.Clone(w.QueueTypes)
	c.CurrentJobID = clonePtr(w.CurrentJobID)
	c.StoppedAt = clonePtr(w.StoppedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ptr[T any](v T) *T {
	return &v
}
