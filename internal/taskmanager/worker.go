package taskmanager

// worker drains exactly one queue, strictly serially. Its state
// machine is Idle -> Running -> Idle, driven by wakeCh: a non-blocking
// send coalesces any number of pending wake-ups into one, and on each
// wake the worker pops and runs everything currently queued before
// going back to sleep. Closing stopCh is how shutdown interrupts an
// idle worker; a worker already mid-task finishes that task, then
// notices stopped and exits without draining the rest of its queue.
type worker[T Runnable] struct {
	key     QueueKey
	queue   *queue[T]
	manager *TaskManager[T]

	wakeCh chan struct{}
	stopCh chan struct{}
	done   chan struct{}
}

func startWorker[T Runnable](key QueueKey, q *queue[T], m *TaskManager[T]) *worker[T] {
	w := &worker[T]{
		key:     key,
		queue:   q,
		manager: m,
		wakeCh:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// wake is a non-blocking request for the worker to check its queue.
func (w *worker[T]) wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// stop requests the worker exit once its current task (if any) is
// done. It never interrupts a task already in flight.
func (w *worker[T]) stop() {
	close(w.stopCh)
}

func (w *worker[T]) run() {
	defer close(w.done)

	for {
		select {
		case <-w.stopCh:
			return
		case <-w.wakeCh:
		}

		for {
			it, ok := w.queue.pop()
			if !ok {
				break
			}
			w.execute(it)
			if w.manager.isStopped() {
				return
			}
		}

		select {
		case <-w.stopCh:
			return
		default:
		}
	}
}

// execute runs it.task in its own goroutine so a panic inside Run
// can't take the worker down with it, then waits for that goroutine
// to finish before considering the worker Idle again.
func (w *worker[T]) execute(it item[T]) {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				logPanic(w.key, r)
			}
		}()

		it.task.Run()
		select {
		case it.result <- it.task:
		default:
		}
	}()
	<-finished
}
