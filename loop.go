// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gyre

import (
	"context"
	"sync"

	"github.com/z5labs/gyre/internal/fifo"
	"github.com/z5labs/gyre/internal/try"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Loop is the execution engine: it owns the current state, serializes
// all incoming events and applies them one at a time via [Update],
// commits each resulting state and only then forwards the transition's
// effects to the connected effect handler. Events emitted by the
// effect handler are fed back into the loop's own input stream.
//
// A Loop is created with [Builder.Start] and lives until [Loop.Dispose].
// Once disposed it is permanently terminal; it is never resumed.
type Loop[S, E, Ef any] struct {
	update  Update[S, E, Ef]
	logger  Logger[S, E, Ef]
	effects Connection[Ef]

	events *fifo.Queue[E]

	mu        sync.Mutex
	state     S
	disposed  bool
	observers map[int]*loopObserver[S]
	nextID    int

	sourceSub Disposable

	disposeOnce sync.Once
	done        chan struct{}
}

func newLoop[S, E, Ef any](b Builder[S, E, Ef], first First[S, Ef]) (*Loop[S, E, Ef], error) {
	l := &Loop[S, E, Ef]{
		update:    b.update,
		logger:    b.logger,
		events:    fifo.New[E](),
		observers: make(map[int]*loopObserver[S]),
		done:      make(chan struct{}),
	}

	events := b.transform(ConsumerFunc[E](l.Dispatch))

	conn, err := b.effectHandler.Connect(events)
	if err != nil {
		return nil, ConnectError{Cause: err}
	}
	l.effects = conn

	l.logger.BeforeInit(first.State())
	l.mu.Lock()
	l.state = first.State()
	l.mu.Unlock()
	l.logger.AfterInit(first.State(), first)
	for _, effect := range first.Effects() {
		conn.Accept(effect)
	}

	go l.run()

	sub := b.source.Subscribe(events)
	l.mu.Lock()
	l.sourceSub = sub
	disposed := l.disposed
	l.mu.Unlock()
	if disposed {
		// Lost the race with a concurrent Dispose.
		sub.Dispose()
	}
	return l, nil
}

func (l *Loop[S, E, Ef]) run() {
	defer close(l.done)
	// A panicking Update or effect handler leaves the loop terminal
	// while the panic itself still propagates.
	defer try.Catch(func(try.Fault) {
		l.Dispose()
	})

	tracer := otel.Tracer("gyre")
	for {
		event, ok := l.events.Pop()
		if !ok {
			return
		}
		l.processEvent(tracer, event)
	}
}

func (l *Loop[S, E, Ef]) processEvent(tracer trace.Tracer, event E) {
	_, span := tracer.Start(context.Background(), "Loop.processEvent")
	defer span.End()

	l.mu.Lock()
	state := l.state
	l.mu.Unlock()

	l.logger.BeforeUpdate(state, event)
	next := l.update.Update(state, event)
	l.logger.AfterUpdate(state, event, next)

	span.SetAttributes(attribute.Int("num_of_effects", len(next.Effects())))

	if newState, ok := next.State(); ok {
		l.commit(newState)
	}
	for _, effect := range next.Effects() {
		l.effects.Accept(effect)
	}
}

func (l *Loop[S, E, Ef]) commit(state S) {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.state = state
	observers := make([]*loopObserver[S], 0, len(l.observers))
	for _, observer := range l.observers {
		observers = append(observers, observer)
	}
	l.mu.Unlock()

	for _, observer := range observers {
		observer.accept(state)
	}
}

// loopObserver serializes all deliveries to a single registered
// observer. Commits happen on the worker goroutine but the
// registration snapshot is delivered from the observing goroutine,
// so without the per-observer lock the two could interleave.
type loopObserver[S any] struct {
	mu       sync.Mutex
	consumer Consumer[S]
}

func (o *loopObserver[S]) accept(state S) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.consumer.Accept(state)
}

// Dispatch enqueues event for serialized processing and returns
// immediately. It is safe to call from any goroutine, including the
// effect handler's own emission goroutine, and never blocks on the
// processing of the event. The queue is unbounded; callers dispatching
// faster than Update can process will grow it without bound rather
// than block or drop. After Dispose, events are silently dropped.
func (l *Loop[S, E, Ef]) Dispatch(event E) {
	l.events.Push(event)
}

// Latest returns a snapshot of the current state. After Dispose it
// keeps returning the last committed state.
func (l *Loop[S, E, Ef]) Latest() S {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Observe registers observer to be notified of every committed state,
// starting with the current one. An observer is never invoked
// concurrently with itself and always sees states in commit order.
// Observers registered after Dispose are never notified.
func (l *Loop[S, E, Ef]) Observe(observer Consumer[S]) Disposable {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return NopDisposable()
	}
	id := l.nextID
	l.nextID++
	entry := &loopObserver[S]{consumer: observer}
	l.observers[id] = entry
	state := l.state

	// Taking the entry's delivery lock before releasing l.mu orders
	// the snapshot ahead of any commit landing after registration.
	entry.mu.Lock()
	l.mu.Unlock()

	observer.Accept(state)
	entry.mu.Unlock()

	return DisposeOnce(func() {
		l.mu.Lock()
		delete(l.observers, id)
		l.mu.Unlock()
	})
}

// Dispose transitions the loop to its terminal state: the event source
// subscription and the effect handler connection are disposed, queued
// but unprocessed events are discarded and further dispatches are
// dropped. Dispose does not wait for an in-flight transition to
// finish. It is idempotent.
func (l *Loop[S, E, Ef]) Dispose() {
	l.disposeOnce.Do(func() {
		l.mu.Lock()
		l.disposed = true
		l.observers = make(map[int]*loopObserver[S])
		sub := l.sourceSub
		l.mu.Unlock()

		if sub != nil {
			sub.Dispose()
		}
		l.events.Close()
		l.effects.Dispose()
	})
}
