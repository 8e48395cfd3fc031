// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gyre

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testView struct {
	mu       sync.Mutex
	states   chan int
	events   Consumer[string]
	connects int
	disposes int
}

func newTestView() *testView {
	return &testView{
		states: make(chan int, 32),
	}
}

func (v *testView) Connect(output Consumer[string]) (Connection[int], error) {
	v.mu.Lock()
	v.connects += 1
	v.events = output
	v.mu.Unlock()

	return NewConnection(func(n int) {
		v.states <- n
	}, func() {
		v.mu.Lock()
		v.disposes += 1
		v.mu.Unlock()
	}), nil
}

func (v *testView) emit(ev string) {
	v.mu.Lock()
	events := v.events
	v.mu.Unlock()
	events.Accept(ev)
}

func (v *testView) await(t *testing.T, want int) bool {
	t.Helper()

	for {
		n, ok := recvTimeout(t, v.states)
		if !ok {
			return false
		}
		if n == want {
			return true
		}
	}
}

func TestController(t *testing.T) {
	t.Run("will deliver the initial state to the view", func(t *testing.T) {
		t.Run("if the view was connected before starting", func(t *testing.T) {
			view := newTestView()
			c := NewBuilder(counterUpdate(), discardEffects()).MakeController(0)

			c.Connect(view)
			c.Start()
			defer c.Stop()

			n, ok := recvTimeout(t, view.states)
			if !ok {
				return
			}
			if !assert.Equal(t, 0, n) {
				return
			}
			if !assert.True(t, c.Running()) {
				return
			}
		})

		t.Run("if the view is connected while running", func(t *testing.T) {
			view := newTestView()
			c := NewBuilder(counterUpdate(), discardEffects()).MakeController(3)

			c.Start()
			defer c.Stop()

			c.Connect(view)

			n, ok := recvTimeout(t, view.states)
			if !ok {
				return
			}
			if !assert.Equal(t, 3, n) {
				return
			}
		})
	})

	t.Run("will apply view events to the loop", func(t *testing.T) {
		t.Run("if the view emits events while running", func(t *testing.T) {
			view := newTestView()
			c := NewBuilder(counterUpdate(), discardEffects()).MakeController(0)

			c.Connect(view)
			c.Start()
			defer c.Stop()

			view.emit("inc")
			view.emit("inc")

			if !view.await(t, 2) {
				return
			}
			if !assert.Equal(t, 2, c.Model()) {
				return
			}
		})
	})

	t.Run("will start from the initial state again", func(t *testing.T) {
		t.Run("if the controller is stopped and restarted", func(t *testing.T) {
			view := newTestView()
			c := NewBuilder(counterUpdate(), discardEffects()).MakeController(0)

			c.Connect(view)
			c.Start()

			view.emit("inc")
			if !view.await(t, 1) {
				return
			}

			c.Stop()
			if !assert.False(t, c.Running()) {
				return
			}
			if !assert.Equal(t, 0, c.Model()) {
				return
			}

			// Drain anything delivered before the stop so the next
			// cycle's first observation is unambiguous.
			for len(view.states) > 0 {
				<-view.states
			}

			c.Start()
			defer c.Stop()

			n, ok := recvTimeout(t, view.states)
			if !ok {
				return
			}
			if !assert.Equal(t, 0, n) {
				return
			}
		})
	})

	t.Run("will normalize the initial state", func(t *testing.T) {
		t.Run("if an init function is configured", func(t *testing.T) {
			effects := make(chan string, 8)
			view := newTestView()

			b := NewBuilder(counterUpdate(), recordEffects(effects))
			c := b.MakeController(-5, WithInit(func(n int) First[int, string] {
				if n < 0 {
					n = 0
				}
				return NewFirst(n, "warmup")
			}))

			c.Connect(view)
			c.Start()
			defer c.Stop()

			n, ok := recvTimeout(t, view.states)
			if !ok {
				return
			}
			if !assert.Equal(t, 0, n) {
				return
			}

			effect, ok := recvTimeout(t, effects)
			if !ok {
				return
			}
			if !assert.Equal(t, "warmup", effect) {
				return
			}
		})
	})

	t.Run("will replace the remembered state", func(t *testing.T) {
		t.Run("if ReplaceModel is called while stopped", func(t *testing.T) {
			view := newTestView()
			c := NewBuilder(counterUpdate(), discardEffects()).MakeController(0)

			c.ReplaceModel(42)
			if !assert.Equal(t, 42, c.Model()) {
				return
			}

			c.Connect(view)
			c.Start()
			defer c.Stop()

			n, ok := recvTimeout(t, view.states)
			if !ok {
				return
			}
			if !assert.Equal(t, 42, n) {
				return
			}
		})
	})

	t.Run("will dispose the view connection", func(t *testing.T) {
		t.Run("if the view is disconnected while running", func(t *testing.T) {
			view := newTestView()
			c := NewBuilder(counterUpdate(), discardEffects()).MakeController(0)

			c.Connect(view)
			c.Start()
			defer c.Stop()

			c.Disconnect()

			view.mu.Lock()
			defer view.mu.Unlock()
			if !assert.Equal(t, 1, view.disposes) {
				return
			}
		})

		t.Run("if the controller is stopped", func(t *testing.T) {
			view := newTestView()
			c := NewBuilder(counterUpdate(), discardEffects()).MakeController(0)

			c.Connect(view)
			c.Start()
			c.Stop()

			view.mu.Lock()
			disposes := view.disposes
			view.mu.Unlock()
			if !assert.Equal(t, 1, disposes) {
				return
			}

			// The view stays attached and reconnects on the next cycle.
			c.Start()
			defer c.Stop()

			view.mu.Lock()
			defer view.mu.Unlock()
			if !assert.Equal(t, 2, view.connects) {
				return
			}
		})
	})

	t.Run("will panic", func(t *testing.T) {
		t.Run("if Start is called while running", func(t *testing.T) {
			c := NewBuilder(counterUpdate(), discardEffects()).MakeController(0)
			c.Start()
			defer c.Stop()

			defer func() {
				if !assert.NotNil(t, recover()) {
					return
				}
			}()

			c.Start()
		})

		t.Run("if Stop is called while stopped", func(t *testing.T) {
			c := NewBuilder(counterUpdate(), discardEffects()).MakeController(0)

			defer func() {
				if !assert.NotNil(t, recover()) {
					return
				}
			}()

			c.Stop()
		})

		t.Run("if a view is already connected", func(t *testing.T) {
			c := NewBuilder(counterUpdate(), discardEffects()).MakeController(0)
			c.Connect(newTestView())

			defer func() {
				if !assert.NotNil(t, recover()) {
					return
				}
			}()

			c.Connect(newTestView())
		})

		t.Run("if Disconnect is called without a connected view", func(t *testing.T) {
			c := NewBuilder(counterUpdate(), discardEffects()).MakeController(0)

			defer func() {
				if !assert.NotNil(t, recover()) {
					return
				}
			}()

			c.Disconnect()
		})

		t.Run("if ReplaceModel is called while running", func(t *testing.T) {
			c := NewBuilder(counterUpdate(), discardEffects()).MakeController(0)
			c.Start()
			defer c.Stop()

			defer func() {
				if !assert.NotNil(t, recover()) {
					return
				}
			}()

			c.ReplaceModel(1)
		})
	})
}
