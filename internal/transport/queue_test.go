package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendQueue_FIFO(t *testing.T) {
	q := newSendQueue()

	for _, e := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(job{endpoint: e}))
	}

	for _, want := range []string{"A", "B", "C"} {
		j, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, j.endpoint)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestSendQueue_EnqueueAfterClose(t *testing.T) {
	q := newSendQueue()
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(job{endpoint: "late"}))
	assert.True(t, q.Closed())
}

func TestSendQueue_IdleTracksOutstandingJobs(t *testing.T) {
	q := newSendQueue()

	select {
	case <-q.Idle():
	default:
		t.Fatal("new queue should be idle")
	}

	q.Enqueue(job{endpoint: "a"})
	q.Enqueue(job{endpoint: "b"})
	idle := q.Idle()

	q.TryDequeue()
	q.Done()
	select {
	case <-idle:
		t.Fatal("queue should not be idle with one job outstanding")
	default:
	}

	q.TryDequeue()
	q.Done()
	select {
	case <-idle:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("queue did not become idle")
	}

	// Extra Done calls never go negative.
	q.Done()
	q.Enqueue(job{endpoint: "c"})
	select {
	case <-q.Idle():
		t.Fatal("queue should be busy again")
	default:
	}
}

func TestSendQueue_ThreadSafe(t *testing.T) {
	q := newSendQueue()

	const producers = 10
	const jobsPerProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < jobsPerProducer; i++ {
				q.Enqueue(job{endpoint: "x"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*jobsPerProducer, q.Len())
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		q.Done()
	}
	select {
	case <-q.Idle():
	default:
		t.Fatal("queue should be idle after draining")
	}
}
