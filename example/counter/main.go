// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/z5labs/gyre"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type event string

const (
	eventTick  event = "tick"
	eventReset event = "reset"
)

type effect struct {
	message string
}

func update(count int, e event) gyre.Next[int, effect] {
	switch e {
	case eventTick:
		next := count + 1
		return gyre.NextState(next, effect{message: fmt.Sprintf("count is now %d", next)})
	case eventReset:
		return gyre.NextState(0, effect{message: "count was reset"})
	default:
		return gyre.NoChange[int, effect]()
	}
}

func printEffects() gyre.ConnectableFunc[effect, event] {
	return func(_ gyre.Consumer[event]) (gyre.Connection[effect], error) {
		return gyre.NewConnection(func(ef effect) {
			fmt.Println(ef.message)
		}, nil), nil
	}
}

func tickSource(interval time.Duration) gyre.EventSourceFunc[event] {
	return func(events gyre.Consumer[event]) gyre.Disposable {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				events.Accept(eventTick)
			}
		}()
		return gyre.DisposeOnce(func() {
			cancel()
			<-done
		})
	}
}

func initTracing(ctx context.Context) (func(context.Context) error, error) {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func run(ctx context.Context, initial int, interval time.Duration, trace bool) error {
	if trace {
		shutdown, err := initTracing(ctx)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})

	b := gyre.NewBuilder[int, event, effect](
		gyre.UpdateFunc[int, event, effect](update),
		printEffects(),
	)
	b = b.WithEventSource(tickSource(interval))
	b = b.WithLogger(gyre.SlogLogger[int, event, effect](logHandler))

	loop, err := b.Start(initial)
	if err != nil {
		return err
	}
	defer loop.Dispose()

	<-ctx.Done()
	return nil
}

func main() {
	var initial int
	var interval time.Duration
	var trace bool

	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Run a counting loop which prints every state change.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), initial, interval, trace)
		},
	}
	cmd.Flags().IntVar(&initial, "initial", 0, "Initial counter value.")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Time between counter increments.")
	cmd.Flags().BoolVar(&trace, "trace", false, "Print loop traces to stdout.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
