package cache

import (
	"sync"

	"github.com/xtxerr/rrdsink/internal/metrics"
)

// flushQueue is the FIFO of archive paths with a batch ready. Singly linked
// with head/tail pointers and a condition variable for wake-on-push. It has
// its own lock; callers holding the cache lock may push, but nothing may
// take the cache lock while holding the queue lock.
type flushQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	head   *queueEntry
	tail   *queueEntry
	count  int
	closed bool
}

type queueEntry struct {
	filename string
	next     *queueEntry
}

func (q *flushQueue) init() {
	q.cond = sync.NewCond(&q.mu)
}

// push appends filename and wakes the worker.
func (q *flushQueue) push(filename string) {
	qe := &queueEntry{filename: filename}

	q.mu.Lock()
	if q.tail == nil {
		q.head = qe
	} else {
		q.tail.next = qe
	}
	q.tail = qe
	q.count++
	q.cond.Signal()
	q.mu.Unlock()

	metrics.QueueDepth.Inc()
}

// pop blocks until an entry is available or the queue is closed. It returns
// false only when the queue is closed and fully drained.
func (q *flushQueue) pop() (string, bool) {
	q.mu.Lock()
	for q.head == nil && !q.closed {
		q.cond.Wait()
	}

	if q.head == nil {
		q.mu.Unlock()
		return "", false
	}

	qe := q.head
	if q.head == q.tail {
		q.head = nil
		q.tail = nil
	} else {
		q.head = qe.next
	}
	q.count--
	q.mu.Unlock()

	metrics.QueueDepth.Dec()
	return qe.filename, true
}

// close marks the queue for shutdown and wakes the worker so it can drain
// and exit.
func (q *flushQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
}

func (q *flushQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}
