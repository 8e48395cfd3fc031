// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gyre

import (
	"sync"

	"github.com/z5labs/gyre/internal/fifo"
)

type controllerOptions[S, Ef any] struct {
	init Init[S, Ef]
}

// ControllerOption configures a [Controller].
type ControllerOption[S, Ef any] func(*controllerOptions[S, Ef])

// WithInit configures the normalization function applied to the
// controller's remembered state at every start. Absent this option the
// state is used as-is with no startup effects.
func WithInit[S, Ef any](init Init[S, Ef]) ControllerOption[S, Ef] {
	return func(co *controllerOptions[S, Ef]) {
		co.init = init
	}
}

// Controller supervises a repeatable start/stop lifecycle over loops
// built from a single [Builder] recipe. Each Start constructs a brand
// new [Loop] and event source subscription from the remembered state;
// each Stop disposes them. State does not carry across cycles unless
// ReplaceModel is called explicitly. All methods are safe to call from
// any goroutine.
//
// Start while running, Stop while stopped, Connect while a view is
// already connected and ReplaceModel while running are programmer
// misuse and panic rather than silently corrupting the lifecycle.
type Controller[S, E, Ef any] struct {
	builder Builder[S, E, Ef]
	init    Init[S, Ef]

	mu       sync.Mutex
	model    S
	running  bool
	loop     *Loop[S, E, Ef]
	stateSub Disposable
	states   *fifo.Queue[S]
	viewDone chan struct{}
	view     Connectable[S, E]
	viewConn Connection[S]
}

func newController[S, E, Ef any](b Builder[S, E, Ef], initialState S, opts ...ControllerOption[S, Ef]) *Controller[S, E, Ef] {
	co := &controllerOptions[S, Ef]{
		init: func(state S) First[S, Ef] {
			return NewFirst[S, Ef](state)
		},
	}
	for _, opt := range opts {
		opt(co)
	}

	return &Controller[S, E, Ef]{
		builder: b,
		init:    co.init,
		model:   initialState,
	}
}

// Start transitions the controller from stopped to running: the
// remembered state is normalized via the init function, a fresh [Loop]
// is built from the recipe and state updates begin flowing to the
// connected view, if any, on a dedicated view goroutine. Start panics
// if the controller is already running.
func (c *Controller[S, E, Ef]) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		panic("gyre: controller is already running")
	}

	first := c.init(c.model)
	loop, err := c.builder.Start(first.State(), first.Effects()...)
	if err != nil {
		panic(err)
	}

	c.loop = loop
	c.running = true
	c.states = fifo.New[S]()
	c.viewDone = make(chan struct{})

	go c.drainStates(c.states, c.viewDone)

	c.connectView(false)

	// Observing delivers the current state immediately, so the view,
	// if one is attached, always sees the cycle's initial state first.
	states := c.states
	c.stateSub = loop.Observe(ConsumerFunc[S](func(state S) {
		states.Push(state)
	}))
}

// drainStates is the view execution context: committed states are
// handed off from the loop's worker through an unbounded queue and
// delivered to the view connection one at a time, in commit order.
func (c *Controller[S, E, Ef]) drainStates(states *fifo.Queue[S], done chan struct{}) {
	defer close(done)

	for {
		state, ok := states.Pop()
		if !ok {
			return
		}

		c.mu.Lock()
		conn := c.viewConn
		c.mu.Unlock()
		if conn == nil {
			continue
		}
		conn.Accept(state)
	}
}

// connectView must be called with c.mu held. deliverCurrent queues the
// loop's current state for the freshly connected view; it is false
// during Start where the loop observer subscription handles it.
func (c *Controller[S, E, Ef]) connectView(deliverCurrent bool) {
	if c.view == nil || !c.running {
		return
	}

	// Events from the view are marshalled onto the work context by
	// Loop.Dispatch itself. The loop is captured so that view events
	// emitted after this cycle stops land in the disposed loop and
	// are dropped, instead of leaking into the next cycle.
	loop := c.loop
	conn, err := c.view.Connect(ConsumerFunc[E](func(event E) {
		loop.Dispatch(event)
	}))
	if err != nil {
		panic(err)
	}
	c.viewConn = conn

	if deliverCurrent {
		c.states.Push(loop.Latest())
	}
}

// Stop transitions the controller from running to stopped: the current
// loop and its subscriptions are disposed and events queued but not
// yet processed are discarded. The next Start begins again from the
// remembered initial state, normalized by the init function; use
// ReplaceModel to carry state across cycles explicitly. Stop panics if
// the controller is not running.
func (c *Controller[S, E, Ef]) Stop() {
	c.mu.Lock()

	if !c.running {
		c.mu.Unlock()
		panic("gyre: controller is not running")
	}

	c.stateSub.Dispose()
	c.loop.Dispose()
	c.states.Close()

	viewConn := c.viewConn
	c.viewConn = nil
	c.stateSub = nil
	c.loop = nil
	c.states = nil
	c.running = false
	c.mu.Unlock()

	if viewConn != nil {
		viewConn.Dispose()
	}
}

// Connect attaches a view to the controller. While stopped the
// connection is deferred until the next Start; while running it is
// established immediately. Connect panics if a view is already
// attached.
func (c *Controller[S, E, Ef]) Connect(view Connectable[S, E]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.view != nil {
		panic("gyre: controller already has a connected view")
	}
	c.view = view
	c.connectView(true)
}

// Disconnect detaches the currently attached view. It may be called
// while running or stopped. Disconnect panics if no view is attached.
func (c *Controller[S, E, Ef]) Disconnect() {
	c.mu.Lock()
	if c.view == nil {
		c.mu.Unlock()
		panic("gyre: controller does not have a connected view")
	}
	c.view = nil
	viewConn := c.viewConn
	c.viewConn = nil
	c.mu.Unlock()

	if viewConn != nil {
		viewConn.Dispose()
	}
}

// Model returns a snapshot of the current state: the live loop's state
// while running, or the remembered state while stopped.
func (c *Controller[S, E, Ef]) Model() S {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return c.loop.Latest()
	}
	return c.model
}

// ReplaceModel replaces the remembered state used by the next Start.
// It panics if the controller is running.
func (c *Controller[S, E, Ef]) ReplaceModel(state S) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		panic("gyre: cannot replace model while running")
	}
	c.model = state
}

// Running reports whether the controller is currently running.
func (c *Controller[S, E, Ef]) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
