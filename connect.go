// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gyre

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Consumer accepts values of type T.
type Consumer[T any] interface {
	Accept(T)
}

// ConsumerFunc is a functional implementation of the [Consumer] interface.
type ConsumerFunc[T any] func(T)

// Accept implements the [Consumer] interface.
func (f ConsumerFunc[T]) Accept(v T) {
	f(v)
}

// Disposable releases the resources held by a subscription or
// connection. Dispose must be safe to call any number of times;
// every call after the first is a no-op.
type Disposable interface {
	Dispose()
}

// DisposeOnce returns a [Disposable] which invokes f exactly once,
// no matter how many times Dispose is called.
func DisposeOnce(f func()) Disposable {
	return &onceDisposable{f: f}
}

type onceDisposable struct {
	once sync.Once
	f    func()
}

func (d *onceDisposable) Dispose() {
	d.once.Do(d.f)
}

// NopDisposable returns a [Disposable] whose Dispose does nothing.
func NopDisposable() Disposable {
	return nopDisposable{}
}

type nopDisposable struct{}

func (nopDisposable) Dispose() {}

// Connection is the live half of a [Connectable]: a consumer of
// inputs paired with the capability to tear the connection down.
// After Dispose has been invoked, further inputs are discarded.
type Connection[T any] interface {
	Consumer[T]
	Disposable
}

// NewConnection returns a [Connection] which forwards inputs to accept
// until dispose is invoked. Dispose runs at most once; inputs accepted
// after disposal are dropped.
func NewConnection[T any](accept func(T), dispose func()) Connection[T] {
	return &connection[T]{
		accept:  accept,
		dispose: dispose,
	}
}

type connection[T any] struct {
	disposed atomic.Bool
	once     sync.Once
	accept   func(T)
	dispose  func()
}

func (c *connection[T]) Accept(v T) {
	if c.disposed.Load() {
		return
	}
	c.accept(v)
}

func (c *connection[T]) Dispose() {
	c.once.Do(func() {
		c.disposed.Store(true)
		if c.dispose == nil {
			return
		}
		c.dispose()
	})
}

// ErrAlreadyConnected is returned by [Connectable.Connect] when the
// receiver only supports a single logical connection and one has
// already been established.
var ErrAlreadyConnected = errors.New("gyre: connectable is already connected")

// Connectable is a bidirectional adapter: given a consumer of its
// outputs it returns a consumer of its inputs plus the capability to
// tear the connection down. Effect handlers are Connectable[Ef, E]
// and view bindings are Connectable[S, E].
//
// Connect is called at most once per logical connection. The returned
// [Connection] is never invoked concurrently with itself and never
// after its Dispose has been invoked.
type Connectable[I, O any] interface {
	Connect(output Consumer[O]) (Connection[I], error)
}

// ConnectableFunc is a functional implementation of the [Connectable] interface.
type ConnectableFunc[I, O any] func(Consumer[O]) (Connection[I], error)

// Connect implements the [Connectable] interface.
func (f ConnectableFunc[I, O]) Connect(output Consumer[O]) (Connection[I], error) {
	return f(output)
}
