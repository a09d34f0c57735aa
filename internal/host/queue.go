package host

import "sync"

type jobKind int

const (
	// jobAsync runs a named plugin function on a disposable environment.
	jobAsync jobKind = iota
	// jobRequest dispatches an HTTP request through the router.
	jobRequest
)

// job is a unit of deferred work. Async jobs carry a non-owning plugin
// reference and an owned JSON payload; the manager's shutdown and refresh
// ordering guarantees the plugin is alive when the job runs or the job is
// discarded first.
type job struct {
	kind     jobKind
	plugin   *Plugin
	funcName string
	payload  []byte

	req  *Request
	resp chan *Response
}

// jobQueue is a bounded FIFO with blocking put and take. The shutdown flag is
// monotone: once set it is never cleared, and every blocked taker is released
// with ok=false.
type jobQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []*job
	capacity int
	shutdown bool
}

func newJobQueue(capacity int) *jobQueue {
	q := &jobQueue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// put appends a job, blocking while the queue is full. Returns false if the
// queue has shut down; the job is not enqueued in that case.
func (q *jobQueue) put(j *job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) >= q.capacity && !q.shutdown {
		q.notFull.Wait()
	}

	if q.shutdown {
		return false
	}

	q.items = append(q.items, j)
	q.notEmpty.Signal()
	return true
}

// take blocks until a job is available or the queue shuts down. On shutdown
// every waiter gets ok=false immediately; whatever is still queued is left for
// drain.
func (q *jobQueue) take() (*job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.shutdown {
		q.notEmpty.Wait()
	}

	if q.shutdown {
		return nil, false
	}

	j := q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return j, true
}

// drain removes and returns every pending job.
func (q *jobQueue) drain() []*job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.items
	q.items = nil
	q.notFull.Broadcast()
	return out
}

func (q *jobQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// stop sets the shutdown flag and wakes every waiter.
func (q *jobQueue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.shutdown = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}
