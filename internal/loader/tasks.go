package loader

import "sync"

// taskQueue is the explicit FIFO the pipeline schedules every continuation
// onto. Tasks run on whichever goroutine drains the queue, which is the
// pipeline's single logical thread; enqueueing is safe from any goroutine so
// asynchronous fetch hooks can settle from wherever they complete.
type taskQueue struct {
	mu      sync.Mutex
	tasks   []func()
	pending int // dispatched fetches that have not settled yet
	wake    chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{wake: make(chan struct{}, 1)}
}

func (q *taskQueue) push(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
	q.notify()
}

func (q *taskQueue) pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil, false
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task, true
}

// beginAsync records a dispatched fetch whose settlement is still outstanding.
func (q *taskQueue) beginAsync() {
	q.mu.Lock()
	q.pending++
	q.mu.Unlock()
}

// settleAsync enqueues the settlement task and retires its pending slot.
func (q *taskQueue) settleAsync(task func()) {
	q.mu.Lock()
	q.pending--
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
	q.notify()
}

func (q *taskQueue) idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks) == 0 && q.pending == 0
}

func (q *taskQueue) hasPending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending > 0
}

func (q *taskQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Drain runs queued tasks until the queue is empty. It does not wait for
// outstanding fetches; test hosts drive those by settling callbacks and
// draining again.
func (ld *Loader) Drain() {
	for {
		task, ok := ld.queue.pop()
		if !ok {
			return
		}
		task()
	}
}

// Run drains the queue and blocks for outstanding fetch settlements until the
// loader is fully idle. A fetch hook that never settles blocks Run forever.
func (ld *Loader) Run() {
	for {
		ld.Drain()
		if ld.queue.idle() {
			return
		}
		if ld.queue.hasPending() {
			<-ld.queue.wake
		}
	}
}
