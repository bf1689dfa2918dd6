package jobqueue

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/jobengine/pkg/ratelimit"
)

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	cfg              Config
	logger           *slog.Logger
	meter            metric.Meter
	tracer           trace.Tracer
	rateStore        ratelimit.Store
	defaultProcessor Processor
}

// WithConfig replaces the engine settings. Non-positive fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(o *managerOptions) {
		def := o.cfg
		o.cfg = cfg
		if cfg.LivenessInterval <= 0 {
			o.cfg.LivenessInterval = def.LivenessInterval
		}
		if cfg.LivenessThreshold <= 0 {
			o.cfg.LivenessThreshold = def.LivenessThreshold
		}
		if cfg.WorkerStopGrace < 0 {
			o.cfg.WorkerStopGrace = def.WorkerStopGrace
		}
		if cfg.ShutdownTimeout <= 0 {
			o.cfg.ShutdownTimeout = def.ShutdownTimeout
		}
		if cfg.ProcessingSamples <= 0 {
			o.cfg.ProcessingSamples = def.ProcessingSamples
		}
		if cfg.RecentJobs <= 0 {
			o.cfg.RecentJobs = def.RecentJobs
		}
		if cfg.EventBuffer <= 0 {
			o.cfg.EventBuffer = def.EventBuffer
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *managerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMeter records engine metrics on meter instead of the global provider.
func WithMeter(meter metric.Meter) Option {
	return func(o *managerOptions) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithTracer wraps every attempt in a span from tracer instead of the
// global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *managerOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithRateLimitStore keeps rate-limit windows in store, e.g. a
// ratelimit.RedisStore shared by several processes.
func WithRateLimitStore(store ratelimit.Store) Option {
	return func(o *managerOptions) {
		if store != nil {
			o.rateStore = store
		}
	}
}

// WithDefaultProcessor replaces the processor used for queue types without a
// registered one.
func WithDefaultProcessor(p Processor) Option {
	return func(o *managerOptions) {
		if p != nil {
			o.defaultProcessor = p
		}
	}
}

func WithLivenessInterval(d time.Duration) Option {
	return func(o *managerOptions) {
		if d > 0 {
			o.cfg.LivenessInterval = d
		}
	}
}

func WithLivenessThreshold(d time.Duration) Option {
	return func(o *managerOptions) {
		if d > 0 {
			o.cfg.LivenessThreshold = d
		}
	}
}

func WithWorkerStopGrace(d time.Duration) Option {
	return func(o *managerOptions) {
		if d >= 0 {
			o.cfg.WorkerStopGrace = d
		}
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(o *managerOptions) {
		if d > 0 {
			o.cfg.ShutdownTimeout = d
		}
	}
}

func WithProcessingSamples(n int) Option {
	return func(o *managerOptions) {
		if n > 0 {
			o.cfg.ProcessingSamples = n
		}
	}
}

func WithRecentJobs(n int) Option {
	return func(o *managerOptions) {
		if n > 0 {
			o.cfg.RecentJobs = n
		}
	}
}

func WithEventBuffer(n int) Option {
	return func(o *managerOptions) {
		if n > 0 {
			o.cfg.EventBuffer = n
		}
	}
}

// QueueOption configures a queue at creation.
type QueueOption func(*queueConfig)

type queueConfig struct {
	concurrency int
	rateLimit   *RateLimit
	priority    Priority
	timeout     time.Duration
	maxAttempts int
	backoff     Backoff
	retryOnFail bool
	deadLetter  string
	paused      bool
	active      bool
}

func defaultQueueConfig() queueConfig {
	return queueConfig{
		concurrency: 5,
		priority:    PriorityNormal,
		timeout:     30 * time.Second,
		maxAttempts: 3,
		backoff:     DefaultBackoff,
		retryOnFail: true,
		active:      true,
	}
}

func (c queueConfig) validate() error {
	switch {
	case c.concurrency < 1:
		return ErrInvalidConfig
	case c.rateLimit != nil && (c.rateLimit.Limit < 1 || c.rateLimit.Period <= 0):
		return ErrInvalidConfig
	case !c.priority.Valid():
		return ErrInvalidPriority
	case c.timeout < 0, c.maxAttempts < 1:
		return ErrInvalidConfig
	case !c.backoff.validate():
		return ErrInvalidConfig
	}
	return nil
}

// WithConcurrency caps how many jobs of the queue run at once.
func WithConcurrency(n int) QueueOption {
	return func(c *queueConfig) { c.concurrency = n }
}

// WithRateLimit admits at most limit jobs per fixed window of period.
func WithRateLimit(limit int, period time.Duration) QueueOption {
	return func(c *queueConfig) { c.rateLimit = &RateLimit{Limit: limit, Period: period} }
}

func WithDefaultPriority(p Priority) QueueOption {
	return func(c *queueConfig) { c.priority = p }
}

// WithDefaultTimeout bounds each attempt. Zero disables the timeout.
func WithDefaultTimeout(d time.Duration) QueueOption {
	return func(c *queueConfig) { c.timeout = d }
}

func WithDefaultMaxAttempts(n int) QueueOption {
	return func(c *queueConfig) { c.maxAttempts = n }
}

// WithBackoff sets the queue's retry delay policy as given. The zero Backoff
// selects DefaultBackoff.
func WithBackoff(b Backoff) QueueOption {
	return func(c *queueConfig) { c.backoff = b.orDefault(DefaultBackoff) }
}

// WithRetryOnFail toggles automatic retries; without them a failed attempt is terminal.
func WithRetryOnFail(retry bool) QueueOption {
	return func(c *queueConfig) { c.retryOnFail = retry }
}

// WithDeadLetter moves terminally failed jobs to the dead-letter store under name.
func WithDeadLetter(name string) QueueOption {
	return func(c *queueConfig) { c.deadLetter = name }
}

// WithPaused creates the queue paused; jobs are accepted but not dispatched.
func WithPaused() QueueOption {
	return func(c *queueConfig) { c.paused = true }
}

// WithInactive creates the queue inactive; AddJob fails with ErrQueueInactive.
func WithInactive() QueueOption {
	return func(c *queueConfig) { c.active = false }
}

// JobOption configures a job at submission.
type JobOption func(*jobConfig)

type jobConfig struct {
	priority     Priority
	delay        time.Duration
	scheduledAt  *time.Time
	timeout      *time.Duration
	maxAttempts  int
	backoff      *Backoff
	organization string
	tags         []string
	metadata     map[string]string
}

func (c jobConfig) validate() error {
	switch {
	case c.priority != "" && !c.priority.Valid():
		return ErrInvalidPriority
	case c.timeout != nil && *c.timeout < 0:
		return ErrInvalidConfig
	case c.maxAttempts < 0:
		return ErrInvalidConfig
	case c.backoff != nil && !c.backoff.validate():
		return ErrInvalidConfig
	}
	return nil
}

func WithPriority(p Priority) JobOption {
	return func(c *jobConfig) { c.priority = p }
}

// WithDelay holds the job QUEUED for d before it becomes eligible.
func WithDelay(d time.Duration) JobOption {
	return func(c *jobConfig) { c.delay = d }
}

// WithScheduledAt holds the job QUEUED until t. Past times are eligible immediately.
func WithScheduledAt(t time.Time) JobOption {
	return func(c *jobConfig) { c.scheduledAt = &t }
}

// WithTimeout overrides the queue's per-attempt timeout.
func WithTimeout(d time.Duration) JobOption {
	return func(c *jobConfig) { c.timeout = &d }
}

func WithMaxAttempts(n int) JobOption {
	return func(c *jobConfig) { c.maxAttempts = n }
}

// WithJobBackoff replaces the queue's retry policy for this job. The policy
// is used as given (a zero Max is uncapped); the zero Backoff keeps the queue's.
func WithJobBackoff(b Backoff) JobOption {
	return func(c *jobConfig) { c.backoff = &b }
}

// WithOrganization tags the job with an opaque tenant identifier.
func WithOrganization(id string) JobOption {
	return func(c *jobConfig) { c.organization = id }
}

func WithTags(tags ...string) JobOption {
	return func(c *jobConfig) { c.tags = append(c.tags, tags...) }
}

func WithMetadata(key, value string) JobOption {
	return func(c *jobConfig) {
		if c.metadata == nil {
			c.metadata = make(map[string]string)
		}
		c.metadata[key] = value
	}
}
