// Package queue provides the unbounded FIFO queue backing signal/slot
// pairs and change-bus ping channels.
package queue

import (
	"sync"
	"sync/atomic"
)

// Queue is an unbounded multi-producer FIFO. Push never blocks; a pump
// goroutine moves items from the intake channel into an elastic buffer and
// feeds the outlet channel. The outlet is closed once the queue is closed
// and fully drained.
//
// The outlet channel is single-consumer: exactly one goroutine should
// range over C().
type Queue[T any] struct {
	in  chan T
	out chan T

	mu     sync.Mutex
	closed bool

	depth atomic.Int64
}

// New creates an empty queue and starts its pump goroutine.
func New[T any]() *Queue[T] {
	q := &Queue[T]{
		in:  make(chan T),
		out: make(chan T),
	}
	go q.pump()
	return q
}

// Push enqueues an item. Returns false if the queue has been closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.in <- v
	q.depth.Add(1)
	return true
}

// Close stops the queue. Items already enqueued remain readable from C();
// the outlet channel closes once they are drained. Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.in)
}

// C returns the outlet channel. It yields items in FIFO order and is
// closed after Close() once all buffered items have been consumed.
func (q *Queue[T]) C() <-chan T {
	return q.out
}

// Len reports the number of items currently buffered.
func (q *Queue[T]) Len() int {
	return int(q.depth.Load())
}

// pump shuttles items between the intake and the outlet through an
// elastic buffer, so producers never block on slow consumers.
func (q *Queue[T]) pump() {
	var buf []T
	in := q.in
	for {
		var out chan T
		var next T
		if len(buf) > 0 {
			out = q.out
			next = buf[0]
		} else if in == nil {
			close(q.out)
			return
		}

		select {
		case v, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buf = append(buf, v)
		case out <- next:
			buf = buf[1:]
			q.depth.Add(-1)
			// Let the backing array go once fully drained.
			if len(buf) == 0 {
				buf = nil
			}
		}
	}
}
