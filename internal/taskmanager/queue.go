package taskmanager

import (
	"sync"

	"github.com/hookshot/hookshot/internal/metrics"
)

// item pairs a task with the channel its result is delivered on.
type item[T Runnable] struct {
	task   T
	result chan T
}

// queue is a bounded FIFO guarded by its own lock, independent of the
// manager-wide lock, so a push/pop on one queue never blocks a push/pop
// on another.
type queue[T Runnable] struct {
	mu    sync.Mutex
	key   QueueKey
	items []item[T]
	limit int // 0 means unbounded
}

func newQueue[T Runnable](key QueueKey, limit int) *queue[T] {
	return &queue[T]{key: key, limit: limit}
}

// push appends it, evicting the oldest pending item first if the
// queue is at its limit. The evicted item's task has Cancel invoked
// outside the lock, since Cancel may do I/O (e.g. writing a log line)
// and must never be called while holding the queue lock.
func (q *queue[T]) push(it item[T]) {
	q.mu.Lock()
	var evicted *item[T]
	if q.limit > 0 && len(q.items)+1 > q.limit && len(q.items) > 0 {
		e := q.items[0]
		q.items = q.items[1:]
		evicted = &e
	}
	q.items = append(q.items, it)
	depth := len(q.items)
	q.mu.Unlock()

	metrics.QueueDepth.WithLabelValues(string(q.key)).Set(float64(depth))
	if evicted != nil {
		metrics.TasksCancelledTotal.WithLabelValues(string(q.key)).Inc()
		evicted.task.Cancel()
	}
}

// pop removes and returns the oldest item, if any.
func (q *queue[T]) pop() (item[T], bool) {
	q.mu.Lock()

	if len(q.items) == 0 {
		q.mu.Unlock()
		var zero item[T]
		return zero, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	depth := len(q.items)
	q.mu.Unlock()

	metrics.QueueDepth.WithLabelValues(string(q.key)).Set(float64(depth))
	return it, true
}
