// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gyre

import "fmt"

// EventConsumerTransformer wraps the event injection path of a loop.
// The transformed consumer receives every event produced by the event
// source and the effect handler before it reaches the loop, which
// allows e.g. marshalling events onto a specific goroutine.
type EventConsumerTransformer[E any] func(Consumer[E]) Consumer[E]

// Builder is an immutable recipe for constructing loops. Every With
// method returns a new Builder with exactly one field replaced; the
// receiver is never mutated, so a Builder can be shared freely across
// goroutines and [Controller] lifecycles.
type Builder[S, E, Ef any] struct {
	update        Update[S, E, Ef]
	effectHandler Connectable[Ef, E]
	source        EventSource[E]
	logger        Logger[S, E, Ef]
	transform     EventConsumerTransformer[E]
}

// NewBuilder returns a Builder for the given update function and
// effect handler. The event source defaults to one which never emits,
// the logger to a no-op observer and the event consumer transformer to
// the identity. NewBuilder panics if update or effectHandler is nil
// since no loop could ever be constructed from such a recipe.
func NewBuilder[S, E, Ef any](update Update[S, E, Ef], effectHandler Connectable[Ef, E]) Builder[S, E, Ef] {
	if update == nil {
		panic("gyre: update must not be nil")
	}
	if effectHandler == nil {
		panic("gyre: effect handler must not be nil")
	}
	return Builder[S, E, Ef]{
		update:        update,
		effectHandler: effectHandler,
		source:        emptyEventSource[E]{},
		logger:        noopLogger[S, E, Ef]{},
		transform: func(c Consumer[E]) Consumer[E] {
			return c
		},
	}
}

// WithEventSource returns a new Builder using the given event source.
func (b Builder[S, E, Ef]) WithEventSource(source EventSource[E]) Builder[S, E, Ef] {
	b.source = source
	return b
}

// WithLogger returns a new Builder using the given logger.
func (b Builder[S, E, Ef]) WithLogger(logger Logger[S, E, Ef]) Builder[S, E, Ef] {
	b.logger = logger
	return b
}

// WithEventConsumerTransformer returns a new Builder whose event
// injection path is additionally wrapped by t. Transformers compose in
// configuration order: the most recently configured one wraps all
// previously configured ones.
func (b Builder[S, E, Ef]) WithEventConsumerTransformer(t EventConsumerTransformer[E]) Builder[S, E, Ef] {
	prev := b.transform
	b.transform = func(c Consumer[E]) Consumer[E] {
		return t(prev(c))
	}
	return b
}

// Start synchronously constructs and returns a running [Loop]: the
// effect handler is connected, initialState is committed, any
// initialEffects are dispatched and the event source is subscribed.
func (b Builder[S, E, Ef]) Start(initialState S, initialEffects ...Ef) (*Loop[S, E, Ef], error) {
	return newLoop(b, NewFirst(initialState, initialEffects...))
}

// MakeController returns a [Controller] supervising loops built from
// this recipe, remembering initialState for its first start.
func (b Builder[S, E, Ef]) MakeController(initialState S, opts ...ControllerOption[S, Ef]) *Controller[S, E, Ef] {
	return newController(b, initialState, opts...)
}

// ConnectError
type ConnectError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConnectError) Error() string {
	return fmt.Sprintf("gyre: failed to connect effect handler: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConnectError) Unwrap() error {
	return e.Cause
}
