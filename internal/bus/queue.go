package bus

import (
	"context"
	"sync"

	"vblock/internal/errors"
	"vblock/internal/intervalize"
	"vblock/internal/obs"
)

var (
	ErrQueueFull   = errors.New("bar queue full")
	ErrQueueClosed = errors.New("bar queue closed")
)

// Event is one bar in flight from a consumer to the sinks.
type Event struct {
	ID  uint64
	Bar intervalize.Bar
}

// Queue is a bounded, non-blocking bar queue.
type Queue struct {
	mu      sync.RWMutex
	ch      chan Event
	closed  bool
	metrics *obs.Metrics
}

// NewQueue allocates a queue with the given capacity. metrics may be nil.
func NewQueue(capacity int, metrics *obs.Metrics) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity), metrics: metrics}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.metrics.IncQueueClosed()
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		q.metrics.IncQueueDrop()
		return ErrQueueFull
	}
}

func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new events. Queued events are still delivered by Run.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Run consumes events until the context is done or the queue is closed and drained.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
