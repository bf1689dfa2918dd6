package jobqueue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/jobengine/pkg/broadcast"
	"github.com/dmitrymomot/jobengine/pkg/logger"
	"github.com/dmitrymomot/jobengine/pkg/ratelimit"
)

// Manager is the job engine. Construct it with New, register queues and
// processors, then Start it. All methods are safe for concurrent use.
type Manager struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics
	tracer  trace.Tracer
	events  *broadcast.MemoryBroadcaster[Event]

	rateStore        ratelimit.Store
	defaultProcessor Processor

	// mu guards the queue registry and the run state. Lock order:
	// mu, then queueState.mu, then jobsMu / deadLetters.mu. Events are
	// published while the lock guarding the reported change is held; the
	// broadcaster never blocks, so subscribers see changes in the order
	// they were made.
	mu       sync.RWMutex
	queues   map[QueueType]*queueState
	queueIDs map[uuid.UUID]*queueState
	running  bool
	loopCtx  context.Context
	execCtx  context.Context
	stopRun  context.CancelFunc
	stopExec context.CancelFunc

	procMu     sync.RWMutex
	processors map[QueueType]Processor

	// jobsMu guards the job id index; it never wraps another lock.
	jobsMu sync.RWMutex
	jobs   map[uuid.UUID]*queueState

	deadLetters *deadLetterStore
	workers     *workerRegistry
	samples     *durationWindow
	seq         atomic.Uint64

	loops    sync.WaitGroup
	inflight sync.WaitGroup
}

// queueState is a queue with its share of the Job Store. mu serialises every
// counter and job mutation for the queue.
type queueState struct {
	mu      sync.Mutex
	queue   Queue
	entries map[uuid.UUID]*jobEntry
	pending pendingHeap
	limiter *ratelimit.FixedWindow
	deleted bool

	wake chan struct{}
	done chan struct{}
}

func newQueueState(q Queue, limiter *ratelimit.FixedWindow) *queueState {
	return &queueState{
		queue:   q,
		entries: make(map[uuid.UUID]*jobEntry),
		limiter: limiter,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// signal wakes the queue's dispatcher loop without blocking.
func (qs *queueState) signal() {
	select {
	case qs.wake <- struct{}{}:
	default:
	}
}

func (qs *queueState) dispatchable() bool {
	q := &qs.queue
	return !qs.deleted && q.Active && !q.Paused &&
		q.ProcessingCount < q.Concurrency && qs.pending.Len() > 0
}

// New creates a stopped Manager. No goroutines run until Start.
func New(opts ...Option) *Manager {
	o := managerOptions{
		cfg:              DefaultConfig(),
		logger:           slog.Default(),
		defaultProcessor: defaultProcessor,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rateStore == nil {
		o.rateStore = ratelimit.NewMemoryStore()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(instrumentationName)
	}

	return &Manager{
		cfg:              o.cfg,
		logger:           o.logger.With(logger.Component("jobqueue")),
		metrics:          newMetrics(o.meter),
		tracer:           o.tracer,
		events:           broadcast.NewMemoryBroadcaster[Event](o.cfg.EventBuffer),
		rateStore:        o.rateStore,
		defaultProcessor: o.defaultProcessor,
		queues:           make(map[QueueType]*queueState),
		queueIDs:         make(map[uuid.UUID]*queueState),
		processors:       make(map[QueueType]Processor),
		jobs:             make(map[uuid.UUID]*queueState),
		deadLetters:      newDeadLetterStore(),
		workers:          newWorkerRegistry(),
		samples:          newDurationWindow(o.cfg.ProcessingSamples),
	}
}

// Start launches one dispatcher loop per queue and the worker liveness sweep.
// Loops stop when ctx is done or Stop is called; running jobs are not
// cancelled by ctx.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyStarted
	}

	m.loopCtx, m.stopRun = context.WithCancel(ctx)
	m.execCtx, m.stopExec = context.WithCancel(context.WithoutCancel(ctx))
	m.running = true

	for _, qs := range m.queues {
		m.startLoop(qs)
	}

	m.loops.Add(1)
	go m.livenessLoop(m.loopCtx)

	m.logger.InfoContext(ctx, "job engine started",
		slog.Int("queues", len(m.queues)),
		slog.Duration("liveness_interval", m.cfg.LivenessInterval))

	return nil
}

// Stop halts dispatching and waits for running jobs to finish, bounded by
// ctx and the configured shutdown timeout. Jobs still running at the
// deadline have their context cancelled and ErrShutdownTimeout is returned.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotStarted
	}
	m.running = false
	stopRun, stopExec := m.stopRun, m.stopExec
	m.mu.Unlock()

	stopRun()
	m.loops.Wait()

	m.logger.InfoContext(ctx, "job engine stopping, waiting for running jobs")

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		stopExec()
		m.logger.InfoContext(ctx, "job engine stopped")
		return nil
	case <-ctx.Done():
		stopExec()
		<-drained
		m.logger.WarnContext(ctx, "job engine stopped with jobs still running", logger.Error(ctx.Err()))
		return ErrShutdownTimeout
	}
}

// Run returns a function suitable for errgroup: it starts the manager,
// blocks until ctx is done and then stops it.
func (m *Manager) Run(ctx context.Context) func() error {
	return func() error {
		if err := m.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return m.Stop(context.WithoutCancel(ctx))
	}
}

// Running reports whether the dispatcher loops are active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// startLoop must be called with m.mu held and the manager running.
func (m *Manager) startLoop(qs *queueState) {
	m.loops.Add(1)
	go m.dispatchLoop(m.loopCtx, m.execCtx, qs)
}

func (m *Manager) livenessLoop(ctx context.Context) {
	defer m.loops.Done()

	ticker := time.NewTicker(m.cfg.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.sweepWorkers(ctx, now)
		}
	}
}

func (m *Manager) queueByType(queueType QueueType) (*queueState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	qs, ok := m.queues[queueType]
	if !ok {
		return nil, ErrQueueNotFound
	}
	return qs, nil
}

func (m *Manager) queueByID(id uuid.UUID) (*queueState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	qs, ok := m.queueIDs[id]
	if !ok {
		return nil, ErrQueueNotFound
	}
	return qs, nil
}

func (m *Manager) allQueues() []*queueState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*queueState, 0, len(m.queues))
	for _, qs := range m.queues {
		out = append(out, qs)
	}
	return out
}

func (m *Manager) indexJob(id uuid.UUID, qs *queueState) {
	m.jobsMu.Lock()
	m.jobs[id] = qs
	m.jobsMu.Unlock()
}

func (m *Manager) unindexJob(id uuid.UUID) {
	m.jobsMu.Lock()
	delete(m.jobs, id)
	m.jobsMu.Unlock()
}

func (m *Manager) jobOwner(id uuid.UUID) (*queueState, bool) {
	m.jobsMu.RLock()
	defer m.jobsMu.RUnlock()
	qs, ok := m.jobs[id]
	return qs, ok
}
