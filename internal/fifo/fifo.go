// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package fifo provides an unbounded multi-producer, single-consumer queue.
package fifo

import "sync"

// Queue is an unbounded FIFO. Push never blocks on the consumer, which
// preserves each producer's own emission order while keeping enqueue
// cheap for arbitrarily many concurrent producers. Close discards any
// items not yet popped.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

// New returns an empty, open Queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues v and returns true. Once the queue has been closed,
// Push drops v and returns false.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, v)
	q.cond.Signal()
	return true
}

// Pop blocks until an item is available or the queue is closed. It
// returns false once the queue has been closed; items still enqueued
// at close time are discarded, not delivered.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && len(q.items) == 0 {
		q.cond.Wait()
	}

	var zero T
	if q.closed {
		return zero, false
	}

	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// Close closes the queue, discarding any queued items and waking all
// blocked consumers. Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	q.cond.Broadcast()
}

// Len reports the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
