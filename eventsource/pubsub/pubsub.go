// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pubsub provides a Google Cloud Pub/Sub backed gyre.EventSource.
package pubsub

import (
	"context"
	"log/slog"

	"github.com/z5labs/gyre"

	pubsubpb "cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Client is the subset of the Pub/Sub subscriber API the source relies on.
type Client interface {
	Pull(context.Context, *pubsubpb.PullRequest, ...gax.CallOption) (*pubsubpb.PullResponse, error)
	Acknowledge(context.Context, *pubsubpb.AcknowledgeRequest, ...gax.CallOption) error
}

type options struct {
	logHandler       slog.Handler
	subscription     string
	maxNumOfMessages int32
}

// Option configures a [Source].
type Option func(*options)

// Subscription configures the Pub/Sub subscription to pull from.
func Subscription(name string) Option {
	return func(o *options) {
		o.subscription = name
	}
}

// MaxNumOfMessages configures the maximum number of messages to pull
// per request.
func MaxNumOfMessages(n int32) Option {
	return func(o *options) {
		o.maxNumOfMessages = n
	}
}

// LogHandler configures the slog.Handler used for logging.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

type noopLogHandler struct{}

func (noopLogHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (noopLogHandler) Handle(context.Context, slog.Record) error { return nil }
func (h noopLogHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h noopLogHandler) WithGroup(string) slog.Handler           { return h }

// Source pulls from a Pub/Sub subscription and emits one event per
// received message. Messages which decode successfully are
// acknowledged after the event has been handed to the subscribed
// consumer.
type Source[E any] struct {
	log    *slog.Logger
	pubsub Client
	decode func(*pubsubpb.ReceivedMessage) (E, error)

	subscription     string
	maxNumOfMessages int32
}

// New returns a [Source] emitting events decoded from Pub/Sub messages.
func New[E any](client Client, decode func(*pubsubpb.ReceivedMessage) (E, error), opts ...Option) *Source[E] {
	o := &options{
		logHandler:       noopLogHandler{},
		maxNumOfMessages: 100,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Source[E]{
		log:              slog.New(o.logHandler),
		pubsub:           client,
		decode:           decode,
		subscription:     o.subscription,
		maxNumOfMessages: o.maxNumOfMessages,
	}
}

// Subscribe implements the [gyre.EventSource] interface. Events are
// emitted on a dedicated goroutine in pull order. Disposing the
// returned value stops pulling and waits for in-flight emissions to
// finish, so no events are emitted after Dispose returns.
func (s *Source[E]) Subscribe(consumer gyre.Consumer[E]) gyre.Disposable {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		s.run(ctx, consumer)
	}()

	return gyre.DisposeOnce(func() {
		cancel()
		<-done
	})
}

func (s *Source[E]) run(ctx context.Context, consumer gyre.Consumer[E]) {
	ackCh := make(chan []string)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(ackCh)
		return s.pull(gctx, consumer, ackCh)
	})
	g.Go(func() error {
		for ackIDs := range ackCh {
			s.acknowledge(gctx, ackIDs)
		}
		return nil
	})
	_ = g.Wait()
}

func (s *Source[E]) pull(ctx context.Context, consumer gyre.Consumer[E], ackCh chan<- []string) error {
	tracer := otel.Tracer("pubsub")
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		spanCtx, span := tracer.Start(ctx, "Source.pull")
		resp, err := s.pubsub.Pull(spanCtx, &pubsubpb.PullRequest{
			Subscription: s.subscription,
			MaxMessages:  s.maxNumOfMessages,
		})
		if err != nil {
			span.End()
			if ctx.Err() != nil {
				return nil
			}
			s.log.ErrorContext(ctx, "failed to pull messages", slog.Any("error", err))
			continue
		}
		span.SetAttributes(attribute.Int("num_of_messages", len(resp.ReceivedMessages)))

		ackIDs := make([]string, 0, len(resp.ReceivedMessages))
		for _, msg := range resp.ReceivedMessages {
			event, err := s.decode(msg)
			if err != nil {
				s.log.ErrorContext(
					spanCtx,
					"failed to decode message",
					slog.String("pubsub_ack_id", msg.AckId),
					slog.Any("error", err),
				)
				continue
			}

			consumer.Accept(event)
			ackIDs = append(ackIDs, msg.AckId)
		}
		span.End()

		if len(ackIDs) == 0 {
			continue
		}
		select {
		case ackCh <- ackIDs:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Source[E]) acknowledge(ctx context.Context, ackIDs []string) {
	err := s.pubsub.Acknowledge(ctx, &pubsubpb.AcknowledgeRequest{
		Subscription: s.subscription,
		AckIds:       ackIDs,
	})
	if err != nil {
		s.log.ErrorContext(
			ctx,
			"failed to acknowledge messages",
			slog.Int("num_of_ack_ids", len(ackIDs)),
			slog.Any("error", err),
		)
	}
}
