package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned when enqueueing on a closed dispatch queue.
var ErrQueueClosed = errors.New("dispatch queue is closed")

// dispatch is the lightweight entry handed from submitters to workers:
// the task id plus the in-memory job reference. The full record lives in
// the registry and the store.
type dispatch struct {
	id  uuid.UUID
	job Job
}

// Queue is the bounded FIFO hand-off channel between submitters and the
// worker pool. Enqueue blocks while the queue is full, providing
// back-pressure to submitters.
type Queue struct {
	mu      sync.Mutex
	entries chan dispatch
	done    chan struct{}
	closed  bool
	logger  *slog.Logger
}

// NewQueue creates a dispatch queue with the given buffer size.
func NewQueue(size int, logger *slog.Logger) *Queue {
	return &Queue{
		entries: make(chan dispatch, size),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Enqueue adds a dispatch entry, blocking while the queue is full. It
// returns ErrQueueClosed if the queue has been closed, or the context's
// error if ctx is cancelled before space becomes available.
func (q *Queue) Enqueue(ctx context.Context, d dispatch) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.mu.Unlock()

	select {
	case q.entries <- d:
		q.logger.Debug("task enqueued",
			"task_id", d.id,
			"queue_depth", len(q.entries),
			"queue_cap", cap(q.entries))
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Channel returns the read side of the queue for workers to drain.
func (q *Queue) Channel() <-chan dispatch {
	return q.entries
}

// Close rejects further submissions and unblocks submitters waiting on a
// full queue. The entries channel itself is never closed, so a submitter
// mid-send can never hit a closed channel; entries already queued remain
// readable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
		q.logger.Info("dispatch queue closed")
	}
}

// Depth returns the number of entries currently waiting for a worker.
func (q *Queue) Depth() int {
	return len(q.entries)
}
