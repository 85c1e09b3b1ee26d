// Package memory provides the in-process FIFO job queue.
package memory

import (
	"errors"
	"sync"

	"github.com/JakeFAU/clipdl/internal/media"
)

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded FIFO of jobs. It is safe for concurrent use, though
// the scheduler is its only writer in practice.
type Queue struct {
	mu     sync.Mutex
	items  []media.Job
	closed bool
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends job to the tail and returns the resulting depth.
func (q *Queue) Push(job media.Job) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return len(q.items), ErrClosed
	}
	q.items = append(q.items, job)
	return len(q.items), nil
}

// Pop removes and returns the head. ok is false when the queue is empty.
func (q *Queue) Pop() (media.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return media.Job{}, false
	}
	job := q.items[0]
	q.items[0] = media.Job{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return job, true
}

// Len reports the number of waiting jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns a copy of the waiting jobs in processing order.
func (q *Queue) Pending() []media.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]media.Job, len(q.items))
	copy(out, q.items)
	return out
}

// Close rejects further pushes. Jobs already queued can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
