package jobqueue

import "time"

// Config holds engine-wide settings loaded from the environment.
type Config struct {
	LivenessInterval  time.Duration `env:"JOBQUEUE_LIVENESS_INTERVAL" envDefault:"30s" yaml:"liveness_interval"`
	LivenessThreshold time.Duration `env:"JOBQUEUE_LIVENESS_THRESHOLD" envDefault:"60s" yaml:"liveness_threshold"`
	WorkerStopGrace   time.Duration `env:"JOBQUEUE_WORKER_STOP_GRACE" envDefault:"5s" yaml:"worker_stop_grace"`
	ShutdownTimeout   time.Duration `env:"JOBQUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s" yaml:"shutdown_timeout"`
	ProcessingSamples int           `env:"JOBQUEUE_PROCESSING_SAMPLES" envDefault:"1000" yaml:"processing_samples"`
	RecentJobs        int           `env:"JOBQUEUE_RECENT_JOBS" envDefault:"10" yaml:"recent_jobs"`
	EventBuffer       int           `env:"JOBQUEUE_EVENT_BUFFER" envDefault:"256" yaml:"event_buffer"`
	QueuesFile        string        `env:"JOBQUEUE_QUEUES_FILE" yaml:"queues_file"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		LivenessInterval:  30 * time.Second,
		LivenessThreshold: 60 * time.Second,
		WorkerStopGrace:   5 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		ProcessingSamples: 1000,
		RecentJobs:        10,
		EventBuffer:       256,
	}
}
