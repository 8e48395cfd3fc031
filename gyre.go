// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gyre

// Next describes the outcome of a single transition: optionally a new
// state and zero or more effects to dispatch. The zero value is the
// no-change outcome.
type Next[S, Ef any] struct {
	state    S
	hasState bool
	effects  []Ef
}

// NextState returns a [Next] carrying a new state along with any effects.
func NextState[S, Ef any](state S, effects ...Ef) Next[S, Ef] {
	return Next[S, Ef]{
		state:    state,
		hasState: true,
		effects:  effects,
	}
}

// DispatchEffects returns a [Next] which leaves the current state
// unchanged and only dispatches the given effects.
func DispatchEffects[S, Ef any](effects ...Ef) Next[S, Ef] {
	return Next[S, Ef]{
		effects: effects,
	}
}

// NoChange returns a [Next] which leaves the current state unchanged
// and dispatches nothing.
func NoChange[S, Ef any]() Next[S, Ef] {
	return Next[S, Ef]{}
}

// State returns the new state, if any.
func (n Next[S, Ef]) State() (S, bool) {
	return n.state, n.hasState
}

// Effects returns the effects to dispatch, in dispatch order.
func (n Next[S, Ef]) Effects() []Ef {
	return n.effects
}

// First describes the outcome of loop initialization: a, possibly
// normalized, initial state plus any startup effects. It is produced
// exactly once per [Loop] lifetime.
type First[S, Ef any] struct {
	state   S
	effects []Ef
}

// NewFirst returns a [First] carrying the given initial state and
// startup effects.
func NewFirst[S, Ef any](state S, effects ...Ef) First[S, Ef] {
	return First[S, Ef]{
		state:   state,
		effects: effects,
	}
}

// State returns the initial state.
func (f First[S, Ef]) State() S {
	return f.state
}

// Effects returns the startup effects, in dispatch order.
func (f First[S, Ef]) Effects() []Ef {
	return f.effects
}

// Update computes the next transition outcome from the current state
// and an incoming event. Implementations must be pure: no observable
// side effects and identical output for identical input. An Update may
// be called from any goroutine but the [Loop] guarantees it is never
// invoked concurrently with itself.
type Update[S, E, Ef any] interface {
	Update(state S, event E) Next[S, Ef]
}

// UpdateFunc is a functional implementation of the [Update] interface.
type UpdateFunc[S, E, Ef any] func(S, E) Next[S, Ef]

// Update implements the [Update] interface.
func (f UpdateFunc[S, E, Ef]) Update(state S, event E) Next[S, Ef] {
	return f(state, event)
}

// Init normalizes the state remembered by a [Controller] into the
// [First] used when constructing a fresh [Loop].
type Init[S, Ef any] func(S) First[S, Ef]
