// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gyre

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextState(t *testing.T) {
	t.Run("will carry a new state", func(t *testing.T) {
		t.Run("if no effects are given", func(t *testing.T) {
			next := NextState[int, string](2)

			state, ok := next.State()
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, 2, state) {
				return
			}
			if !assert.Empty(t, next.Effects()) {
				return
			}
		})

		t.Run("if effects are given", func(t *testing.T) {
			next := NextState(2, "a", "b")

			state, ok := next.State()
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, 2, state) {
				return
			}
			if !assert.Equal(t, []string{"a", "b"}, next.Effects()) {
				return
			}
		})
	})
}

func TestDispatchEffects(t *testing.T) {
	t.Run("will not carry a state", func(t *testing.T) {
		t.Run("if effects are given", func(t *testing.T) {
			next := DispatchEffects[int]("a")

			_, ok := next.State()
			if !assert.False(t, ok) {
				return
			}
			if !assert.Equal(t, []string{"a"}, next.Effects()) {
				return
			}
		})
	})
}

func TestNoChange(t *testing.T) {
	t.Run("will carry neither state nor effects", func(t *testing.T) {
		next := NoChange[int, string]()

		_, ok := next.State()
		if !assert.False(t, ok) {
			return
		}
		if !assert.Empty(t, next.Effects()) {
			return
		}
	})

	t.Run("will match the zero value", func(t *testing.T) {
		var zero Next[int, string]

		if !assert.Equal(t, zero, NoChange[int, string]()) {
			return
		}
	})
}

func TestNewFirst(t *testing.T) {
	t.Run("will carry the initial state", func(t *testing.T) {
		t.Run("if startup effects are given", func(t *testing.T) {
			first := NewFirst(10, "boot")

			if !assert.Equal(t, 10, first.State()) {
				return
			}
			if !assert.Equal(t, []string{"boot"}, first.Effects()) {
				return
			}
		})

		t.Run("if no startup effects are given", func(t *testing.T) {
			first := NewFirst[int, string](10)

			if !assert.Equal(t, 10, first.State()) {
				return
			}
			if !assert.Empty(t, first.Effects()) {
				return
			}
		})
	})
}

func TestUpdateFunc(t *testing.T) {
	t.Run("will delegate to the underlying func", func(t *testing.T) {
		update := UpdateFunc[int, string, string](func(n int, ev string) Next[int, string] {
			return NextState[int, string](n + 1)
		})

		state, ok := update.Update(1, "inc").State()
		if !assert.True(t, ok) {
			return
		}
		if !assert.Equal(t, 2, state) {
			return
		}
	})
}
