// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gyre

// EventSource produces events independently of the loop, e.g. by
// observing environment conditions. A source may begin emitting
// synchronously during Subscribe or asynchronously later, from any
// goroutine. It must stop emitting strictly after the returned
// [Disposable] has been invoked; emissions racing with disposal are
// tolerated by the loop discarding them.
type EventSource[E any] interface {
	Subscribe(Consumer[E]) Disposable
}

// EventSourceFunc is a functional implementation of the [EventSource] interface.
type EventSourceFunc[E any] func(Consumer[E]) Disposable

// Subscribe implements the [EventSource] interface.
func (f EventSourceFunc[E]) Subscribe(c Consumer[E]) Disposable {
	return f(c)
}

// emptyEventSource never emits. It is the default source for a
// [Builder] configured without one.
type emptyEventSource[E any] struct{}

func (emptyEventSource[E]) Subscribe(Consumer[E]) Disposable {
	return NopDisposable()
}
