package transport

import (
	"context"
	"net/url"
	"sync"

	"github.com/roach88/profilesync/internal/model"
)

// job is one pending POST.
type job struct {
	ctx      context.Context
	endpoint string
	body     url.Values
	cb       model.Callback
}

// sendQueue is a thread-safe FIFO queue of pending POSTs.
//
// The queue is unbounded so Send never blocks the dispatcher.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop. It also tracks outstanding jobs (queued or in flight) so
// callers can wait for the transport to go idle.
type sendQueue struct {
	mu     sync.Mutex
	jobs   []job
	closed bool
	signal chan struct{} // Signals job availability (buffered, size 1)

	outstanding int
	idle        chan struct{} // Closed while outstanding == 0
}

func newSendQueue() *sendQueue {
	idle := make(chan struct{})
	close(idle)
	return &sendQueue{
		jobs:   make([]job, 0, 16),
		signal: make(chan struct{}, 1),
		idle:   idle,
	}
}

// Enqueue adds a job to the back of the queue.
// Returns false if the queue is closed.
func (q *sendQueue) Enqueue(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.jobs = append(q.jobs, j)
	if q.outstanding == 0 {
		q.idle = make(chan struct{})
	}
	q.outstanding++

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front job without blocking.
func (q *sendQueue) TryDequeue() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return job{}, false
	}

	j := q.jobs[0]
	// Nil out the slot so the job's body and callback can be collected.
	q.jobs[0] = job{}

	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}
	return j, true
}

// Done marks one dequeued job as finished.
func (q *sendQueue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.outstanding == 0 {
		return
	}
	q.outstanding--
	if q.outstanding == 0 {
		close(q.idle)
	}
}

// Idle returns a channel that is closed once no job is queued or in flight.
func (q *sendQueue) Idle() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.idle
}

// Wait returns a channel that signals when jobs may be available.
func (q *sendQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued jobs (not counting one in flight).
func (q *sendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Closed reports whether Close has been called.
func (q *sendQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting jobs and wakes the sender.
func (q *sendQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
