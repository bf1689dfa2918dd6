package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
)

// Message wraps data of type T for type-safe broadcasting.
type Message[T any] struct {
	Data T
}

// Subscriber receives messages from a Broadcaster.
// Implementations must be safe for concurrent use.
type Subscriber[T any] interface {
	// Receive returns the channel messages are delivered on.
	// The channel is closed when the subscription ends.
	Receive(ctx context.Context) <-chan Message[T]

	// Dropped returns how many messages were discarded because the buffer was full.
	Dropped() uint64

	// Close ends the subscription. Idempotent.
	Close() error
}

// Broadcaster sends messages to multiple subscribers.
type Broadcaster[T any] interface {
	// Subscribe registers a subscriber for all subsequent broadcasts.
	// The subscription is released when ctx is cancelled.
	Subscribe(ctx context.Context, opts ...SubscribeOption[T]) Subscriber[T]

	// Broadcast delivers msg to every subscriber without blocking.
	Broadcast(ctx context.Context, msg Message[T]) error

	// Close shuts down the broadcaster and closes all subscribers.
	Close() error
}

// SubscribeOption configures a single subscription.
type SubscribeOption[T any] func(*subscribeConfig[T])

type subscribeConfig[T any] struct {
	bufferSize int
	filter     func(T) bool
}

// WithBufferSize overrides the channel buffer for one subscriber.
func WithBufferSize[T any](size int) SubscribeOption[T] {
	return func(c *subscribeConfig[T]) {
		if size > 0 {
			c.bufferSize = size
		}
	}
}

// WithFilter delivers only messages whose data satisfies fn.
func WithFilter[T any](fn func(T) bool) SubscribeOption[T] {
	return func(c *subscribeConfig[T]) {
		c.filter = fn
	}
}

type subscriber[T any] struct {
	ch          chan Message[T]
	quit        chan struct{}
	filter      func(T) bool
	dropped     atomic.Uint64
	closed      bool
	mu          sync.RWMutex
	unsubscribe func()
}

func newSubscriber[T any](cfg subscribeConfig[T]) *subscriber[T] {
	return &subscriber[T]{
		ch:     make(chan Message[T], cfg.bufferSize),
		quit:   make(chan struct{}),
		filter: cfg.filter,
	}
}

func (s *subscriber[T]) Receive(ctx context.Context) <-chan Message[T] {
	return s.ch
}

func (s *subscriber[T]) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *subscriber[T]) Close() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.close()
	return nil
}

func (s *subscriber[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		close(s.quit)
		s.closed = true
	}
}

func (s *subscriber[T]) send(msg Message[T]) {
	if s.filter != nil && !s.filter(msg.Data) {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	select {
	case s.ch <- msg:
	default:
		s.dropped.Add(1)
	}
}
