// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gyre

import (
	"context"
	"log/slog"
)

// Logger observes a [Loop]'s execution. Implementations are read-only:
// they are invoked around initialization and around every update and
// must never alter control flow.
type Logger[S, E, Ef any] interface {
	BeforeInit(S)
	AfterInit(S, First[S, Ef])
	BeforeUpdate(S, E)
	AfterUpdate(S, E, Next[S, Ef])
}

// noopLogger is the default logger for a [Builder] configured without one.
type noopLogger[S, E, Ef any] struct{}

func (noopLogger[S, E, Ef]) BeforeInit(S) {}

func (noopLogger[S, E, Ef]) AfterInit(S, First[S, Ef]) {}

func (noopLogger[S, E, Ef]) BeforeUpdate(S, E) {}

func (noopLogger[S, E, Ef]) AfterUpdate(S, E, Next[S, Ef]) {}

// SlogLogger returns a [Logger] which records loop activity via the
// given [slog.Handler] at [slog.LevelDebug].
func SlogLogger[S, E, Ef any](h slog.Handler) Logger[S, E, Ef] {
	return slogLogger[S, E, Ef]{
		log: slog.New(h),
	}
}

type slogLogger[S, E, Ef any] struct {
	log *slog.Logger
}

func (l slogLogger[S, E, Ef]) BeforeInit(state S) {
	l.log.LogAttrs(
		context.Background(),
		slog.LevelDebug,
		"initializing loop",
		slog.Any("state", state),
	)
}

func (l slogLogger[S, E, Ef]) AfterInit(state S, first First[S, Ef]) {
	l.log.LogAttrs(
		context.Background(),
		slog.LevelDebug,
		"initialized loop",
		slog.Any("state", first.State()),
		slog.Int("num_of_startup_effects", len(first.Effects())),
	)
}

func (l slogLogger[S, E, Ef]) BeforeUpdate(state S, event E) {
	l.log.LogAttrs(
		context.Background(),
		slog.LevelDebug,
		"applying update",
		slog.Any("state", state),
		slog.Any("event", event),
	)
}

func (l slogLogger[S, E, Ef]) AfterUpdate(state S, event E, next Next[S, Ef]) {
	attrs := []slog.Attr{
		slog.Any("event", event),
		slog.Int("num_of_effects", len(next.Effects())),
	}
	if state, ok := next.State(); ok {
		attrs = append(attrs, slog.Any("new_state", state))
	}
	l.log.LogAttrs(
		context.Background(),
		slog.LevelDebug,
		"applied update",
		attrs...,
	)
}
