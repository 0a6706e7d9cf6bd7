package taskmanager

import (
	"sync"
	"testing"
	"time"
)

// bufTask appends Msg to a shared, mutex-guarded buffer when it runs.
type bufTask struct {
	mu       *sync.Mutex
	buf      *string
	msg      string
	delay    time.Duration
	canceled bool
}

func (t *bufTask) Run() {
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	t.mu.Lock()
	*t.buf += t.msg
	t.mu.Unlock()
}

func (t *bufTask) Cancel() { t.canceled = true }

func TestPerQueueFIFOUnderLoad(t *testing.T) {
	var mu sync.Mutex
	var buf string

	tm := New[*bufTask](0, nil)
	key := tm.EnsureQueue("q")

	var last <-chan *bufTask
	for _, msg := range []string{"1", "2", "3", "4", "5"} {
		ch, err := tm.AddTask(key, &bufTask{mu: &mu, buf: &buf, msg: msg})
		if err != nil {
			t.Fatal(err)
		}
		last = ch
	}

	select {
	case <-last:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for last task")
	}

	mu.Lock()
	got := buf
	mu.Unlock()
	if got != "12345" {
		t.Fatalf("got %q, want %q", got, "12345")
	}
}

func TestBoundedQueueEviction(t *testing.T) {
	var mu sync.Mutex
	var buf string

	tm := New[*bufTask](1, nil)
	key := tm.EnsureQueue("q")

	tasks := make([]*bufTask, 5)
	var last <-chan *bufTask
	for i, msg := range []string{"1", "2", "3", "4", "5"} {
		task := &bufTask{mu: &mu, buf: &buf, msg: msg}
		if msg == "1" {
			// give the worker time to pick up "1" before the rest
			// are pushed, so they land in the queue (not mid-run)
			task.delay = 50 * time.Millisecond
		}
		tasks[i] = task
		ch, err := tm.AddTask(key, task)
		if err != nil {
			t.Fatal(err)
		}
		last = ch
		if msg == "1" {
			time.Sleep(10 * time.Millisecond)
		}
	}

	select {
	case <-last:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for last task")
	}
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	got := buf
	mu.Unlock()
	if got != "15" {
		t.Fatalf("got %q, want %q", got, "15")
	}
	for _, i := range []int{1, 2, 3} { // tasks "2","3","4" should be canceled
		if !tasks[i].canceled {
			t.Fatalf("task %q was not canceled", tasks[i].msg)
		}
	}
}

func TestCrossQueueParallelism(t *testing.T) {
	var mu sync.Mutex
	var buf string

	tm := New[*bufTask](0, nil)
	keyA := tm.EnsureQueue("a")
	keyB := tm.EnsureQueue("b")

	start := time.Now()
	chA, _ := tm.AddTask(keyA, &bufTask{mu: &mu, buf: &buf, msg: "a", delay: 300 * time.Millisecond})
	chB, _ := tm.AddTask(keyB, &bufTask{mu: &mu, buf: &buf, msg: "b", delay: 300 * time.Millisecond})

	<-chA
	<-chB
	elapsed := time.Since(start)
	if elapsed > 550*time.Millisecond {
		t.Fatalf("two queues did not run in parallel: took %s", elapsed)
	}
}

func TestShutdownCorrectness(t *testing.T) {
	var mu sync.Mutex
	var buf string

	signal := make(chan struct{}, 1)
	tm := New[*bufTask](0, signal)
	key := tm.EnsureQueue("q")

	ch, err := tm.AddTask(key, &bufTask{mu: &mu, buf: &buf, msg: "x", delay: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	tm.Shutdown()

	select {
	case <-ch:
	default:
		t.Fatal("in-flight task did not run to completion before Shutdown returned")
	}

	select {
	case <-signal:
	default:
		t.Fatal("shutdown signal was not sent")
	}

	if _, err := tm.AddTask(key, &bufTask{mu: &mu, buf: &buf, msg: "y"}); err != ErrShutdown {
		t.Fatalf("expected ErrShutdown after shutdown, got %v", err)
	}
}

func TestAddTaskUnknownQueue(t *testing.T) {
	tm := New[*bufTask](0, nil)
	if _, err := tm.AddTask(QueueKey("never-created"), &bufTask{}); err != ErrQueueMissing {
		t.Fatalf("expected ErrQueueMissing, got %v", err)
	}
}

func TestTaskPanicDoesNotKillWorker(t *testing.T) {
	var mu sync.Mutex
	var buf string

	tm := New[*panicTask](0, nil)
	key := tm.EnsureQueue("q")

	tm.AddTask(key, &panicTask{})
	ch, err := tm.AddTask(key, &panicTask{after: &bufTask{mu: &mu, buf: &buf, msg: "survived"}})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("worker appears to have died after a panicking task")
	}

	mu.Lock()
	got := buf
	mu.Unlock()
	if got != "survived" {
		t.Fatalf("got %q, want %q", got, "survived")
	}
}

type panicTask struct {
	after *bufTask
}

func (t *panicTask) Run() {
	if t.after != nil {
		t.after.Run()
		return
	}
	panic("boom")
}

func (t *panicTask) Cancel() {}
