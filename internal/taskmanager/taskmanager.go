// Package taskmanager runs parallel queues that each process their
// tasks serially. Creating a queue spawns a worker goroutine for it;
// adding a task to that queue wakes the worker if it's idle. Workers
// for different queues run concurrently and never interfere with each
// other; a worker never reorders or skips a task within its own queue
// except when capacity pressure evicts the oldest pending one.
//
// EnsureQueue spawns one worker per key the first time it's seen;
// AddTask wakes that worker and hands back a channel the finished task
// is delivered on exactly once; Shutdown lets every worker finish
// whatever it's currently running before it exits.
//
// # Waiting for tasks to finish
//
//	tm := taskmanager.New[*Task](0, nil)
//	letters := tm.EnsureQueue("letters")
//	numbers := tm.EnsureQueue("numbers")
//
//	// "a", "b", "c" and "1", "2", "3" each print in order, though
//	// letters and numbers interleave because the two queues run in
//	// parallel with each other.
//	tm.AddTask(letters, &Task{Msg: "a"})
//	tm.AddTask(letters, &Task{Msg: "b"})
//	lastLetter, _ := tm.AddTask(letters, &Task{Msg: "c"})
//
//	tm.AddTask(numbers, &Task{Msg: "1"})
//	tm.AddTask(numbers, &Task{Msg: "2"})
//	lastNumber, _ := tm.AddTask(numbers, &Task{Msg: "3"})
//
//	<-lastLetter
//	<-lastNumber
//
// # Graceful shutdown
//
//	shutdownSignal := make(chan struct{}, 1)
//	tm := taskmanager.New[*Task](0, shutdownSignal)
//
//	key := tm.EnsureQueue("q")
//	tm.AddTask(key, &Task{Msg: "important"})
//
//	tm.Shutdown() // blocks until every worker's current task finishes
//	<-shutdownSignal
//
//	if _, err := tm.AddTask(key, &Task{Msg: "too late"}); err == ErrShutdown {
//		// manager no longer accepts new tasks until Restart()
//	}
package taskmanager

import (
	"errors"
	"log"
	"runtime/debug"
	"sync"
)

// Runnable is anything a queue can run. Cancel is called only on tasks
// evicted by capacity pressure before they ever ran; it is never
// called on a task that is currently running or has already run.
type Runnable interface {
	Run()
	Cancel()
}

// QueueKey identifies one queue. It's opaque outside this package;
// obtain one from EnsureQueue and pass it back to AddTask.
type QueueKey string

var (
	// ErrQueueMissing is returned by AddTask when queueKey was never
	// produced by a call to EnsureQueue.
	ErrQueueMissing = errors.New("taskmanager: no such queue")
	// ErrShutdown is returned by AddTask once Shutdown has been
	// called and before any subsequent Restart.
	ErrShutdown = errors.New("taskmanager: manager is shut down")
)

// TaskManager owns every queue and worker it creates. A single
// manager-wide mutex protects queue/worker bookkeeping (creation,
// lookup, the stopped flag); each queue additionally has its own lock
// held only long enough to push or pop, so two workers never block on
// each other.
type TaskManager[T Runnable] struct {
	mu      sync.Mutex
	queues  map[QueueKey]*queue[T]
	workers map[QueueKey]*worker[T]
	limit   int
	stopped bool

	shutdownSignal chan<- struct{}
}

// New constructs a TaskManager. limit of 0 means queues may grow
// without bound; a positive limit makes every queue's push evict the
// oldest pending task once the queue would otherwise exceed it.
// shutdownSignal, if non-nil, receives exactly one value once
// Shutdown has drained every worker.
func New[T Runnable](limit int, shutdownSignal chan<- struct{}) *TaskManager[T] {
	return &TaskManager[T]{
		queues:         make(map[QueueKey]*queue[T]),
		workers:        make(map[QueueKey]*worker[T]),
		limit:          limit,
		shutdownSignal: shutdownSignal,
	}
}

// EnsureQueue is idempotent: the first call for a given key creates
// the queue and spawns its worker; later calls return the same key
// without side effects.
func (m *TaskManager[T]) EnsureQueue(keyString string) QueueKey {
	key := QueueKey(keyString)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.queues[key]; ok {
		return key
	}

	q := newQueue[T](key, m.limit)
	m.queues[key] = q
	if !m.stopped {
		m.workers[key] = startWorker(key, q, m)
	}
	return key
}

// AddTask appends task to the named queue and wakes its worker. The
// returned channel receives the finished task exactly once; callers
// that care about a result they might never get (a task that panics)
// should apply their own timeout.
func (m *TaskManager[T]) AddTask(key QueueKey, task T) (<-chan T, error) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, ErrShutdown
	}
	q, qok := m.queues[key]
	w, wok := m.workers[key]
	m.mu.Unlock()

	if !qok || !wok {
		return nil, ErrQueueMissing
	}

	result := make(chan T, 1)
	q.push(item[T]{task: task, result: result})
	w.wake()

	return result, nil
}

// Shutdown transitions the manager to stopped, refuses further
// AddTask calls with ErrShutdown, and waits for every worker to
// finish whatever task it's currently running — pending tasks still
// sitting in a queue are abandoned, not drained. Once every worker
// has exited, Shutdown sends one value on shutdownSignal, if set.
func (m *TaskManager[T]) Shutdown() {
	m.mu.Lock()
	m.stopped = true
	workers := make([]*worker[T], 0, len(m.workers))
	for key, w := range m.workers {
		workers = append(workers, w)
		delete(m.workers, key)
		w.stop()
	}
	m.mu.Unlock()

	for _, w := range workers {
		<-w.done
	}

	if m.shutdownSignal != nil {
		m.shutdownSignal <- struct{}{}
	}
}

// Restart clears the stopped flag and spawns fresh workers for every
// queue that doesn't already have one running.
func (m *TaskManager[T]) Restart() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = false
	for key, q := range m.queues {
		if _, ok := m.workers[key]; !ok {
			m.workers[key] = startWorker(key, q, m)
		}
	}
}

func (m *TaskManager[T]) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func logPanic(key QueueKey, r any) {
	log.Printf("taskmanager: queue %q: task panicked, worker protected: %v", key, r)
	debug.PrintStack()
}
