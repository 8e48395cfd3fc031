// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gyre provides a unidirectional data flow loop runtime.
//
// The package is built around a small set of abstractions:
//
//   - Update[S, E, Ef]: A pure transition function mapping (state, event) to a [Next]
//   - Next[S, Ef]: The outcome of one transition, optionally carrying a new state and effects
//   - Connectable[I, O]: A bidirectional adapter used for effect handlers and view bindings
//   - EventSource[E]: An independent producer of events
//   - Loop: The serialized execution engine which owns the current state
//   - Controller: A restart capable supervisor for driving a Loop from foreign goroutines
//
// # Basic Usage
//
// Define a pure update function:
//
//	update := gyre.UpdateFunc[int, string, struct{}](func(n int, ev string) gyre.Next[int, struct{}] {
//	    switch ev {
//	    case "inc":
//	        return gyre.NextState[int, struct{}](n + 1)
//	    case "dec":
//	        return gyre.NextState[int, struct{}](n - 1)
//	    }
//	    return gyre.NoChange[int, struct{}]()
//	})
//
// Assemble a builder and start a loop:
//
//	b := gyre.NewBuilder(update, effectHandler)
//	loop, err := b.Start(0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Dispose()
//
//	loop.Dispatch("inc")
//
// All events, no matter how many goroutines dispatch them, are applied
// one at a time. Effects resulting from a transition are handed to the
// effect handler only after the new state has been committed.
//
// For restartable lifecycles driven from a UI or other foreign goroutine,
// wrap the builder in a [Controller]:
//
//	c := b.MakeController(0)
//	c.Start()
//	// ...
//	c.Stop()
package gyre
