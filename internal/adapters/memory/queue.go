package memory

import (
	"context"
	"errors"
	"sync"

	"cybergrid/internal/ports"
)

var ErrQueueClosed = errors.New("queue closed")

// Queue is a bounded channel-backed job queue. Enqueue blocks while the
// buffer is full, until ctx is done or the queue is closed.
type Queue struct {
	mu     sync.RWMutex
	ch     chan ports.CheckJob
	done   chan struct{}
	once   sync.Once
	closed bool
}

func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{ch: make(chan ports.CheckJob, size), done: make(chan struct{})}
}

func (q *Queue) Enqueue(ctx context.Context, job ports.CheckJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- job:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Jobs() <-chan ports.CheckJob { return q.ch }

// Close wakes blocked producers, then closes the job channel once none is
// left sending. Jobs already buffered are still delivered.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
		q.mu.Lock()
		defer q.mu.Unlock()
		q.closed = true
		close(q.ch)
	})
}
