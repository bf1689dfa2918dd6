package jobqueue

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/jobengine/pkg/config"
)

// QueueDefinition declares a queue in a YAML file:
//
//	queues:
//	  - type: EMAIL
//	    concurrency: 10
//	    rate_limit: {limit: 100, period: 1m}
//	    max_attempts: 5
//	    backoff: {base: 2s, multiplier: 2, max: 1m}
//	    dead_letter_queue: email-dlq
type QueueDefinition struct {
	Type            QueueType     `yaml:"type"`
	Concurrency     int           `yaml:"concurrency"`
	RateLimit       *RateLimit    `yaml:"rate_limit"`
	DefaultPriority Priority      `yaml:"default_priority"`
	DefaultTimeout  time.Duration `yaml:"default_timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	Backoff         *Backoff      `yaml:"backoff"`
	RetryOnFail     *bool         `yaml:"retry_on_fail"`
	DeadLetterQueue string        `yaml:"dead_letter_queue"`
	Paused          bool          `yaml:"paused"`
	Inactive        bool          `yaml:"inactive"`
}

type queueFile struct {
	Queues []QueueDefinition `yaml:"queues"`
}

// LoadQueueDefinitions reads queue definitions from a YAML file.
func LoadQueueDefinitions(path string) ([]QueueDefinition, error) {
	var f queueFile
	if err := config.LoadYAMLFile(path, &f); err != nil {
		return nil, fmt.Errorf("load queue definitions: %w", err)
	}
	return f.Queues, nil
}

// Options converts the definition; zero fields keep the queue defaults.
func (d QueueDefinition) Options() []QueueOption {
	var opts []QueueOption
	if d.Concurrency != 0 {
		opts = append(opts, WithConcurrency(d.Concurrency))
	}
	if d.RateLimit != nil {
		opts = append(opts, WithRateLimit(d.RateLimit.Limit, d.RateLimit.Period))
	}
	if d.DefaultPriority != "" {
		opts = append(opts, WithDefaultPriority(d.DefaultPriority))
	}
	if d.DefaultTimeout != 0 {
		opts = append(opts, WithDefaultTimeout(d.DefaultTimeout))
	}
	if d.MaxAttempts != 0 {
		opts = append(opts, WithDefaultMaxAttempts(d.MaxAttempts))
	}
	if d.Backoff != nil {
		opts = append(opts, WithBackoff(*d.Backoff))
	}
	if d.RetryOnFail != nil {
		opts = append(opts, WithRetryOnFail(*d.RetryOnFail))
	}
	if d.DeadLetterQueue != "" {
		opts = append(opts, WithDeadLetter(d.DeadLetterQueue))
	}
	if d.Paused {
		opts = append(opts, WithPaused())
	}
	if d.Inactive {
		opts = append(opts, WithInactive())
	}
	return opts
}

// CreateQueues creates every defined queue. It keeps going after a failure
// and returns the queues it created together with the joined errors.
func (m *Manager) CreateQueues(defs ...QueueDefinition) ([]*Queue, error) {
	created := make([]*Queue, 0, len(defs))
	var errs []error
	for _, d := range defs {
		q, err := m.CreateQueue(d.Type, d.Options()...)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		created = append(created, q)
	}
	return created, errors.Join(errs...)
}
