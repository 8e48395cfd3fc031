// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package sqs provides an AWS SQS backed gyre.EventSource.
package sqs

import (
	"context"
	"log/slog"

	"github.com/z5labs/gyre"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Client is the subset of the AWS SQS API the source relies on.
type Client interface {
	ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(context.Context, *sqs.DeleteMessageBatchInput, ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

type options struct {
	logHandler        slog.Handler
	queueURL          string
	maxNumOfMessages  int32
	visibilityTimeout int32
	waitTimeSeconds   int32
}

// Option configures a [Source].
type Option func(*options)

// QueueURL configures the SQS queue to receive messages from.
func QueueURL(url string) Option {
	return func(o *options) {
		o.queueURL = url
	}
}

// MaxNumOfMessages configures the maximum number of messages to
// receive per poll.
func MaxNumOfMessages(n int32) Option {
	return func(o *options) {
		o.maxNumOfMessages = n
	}
}

// VisibilityTimeout configures how long received messages stay hidden
// from other consumers, in seconds.
func VisibilityTimeout(n int32) Option {
	return func(o *options) {
		o.visibilityTimeout = n
	}
}

// WaitTimeSeconds configures the long poll duration.
func WaitTimeSeconds(n int32) Option {
	return func(o *options) {
		o.waitTimeSeconds = n
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

// Source long polls an SQS queue and emits one event per received
// message. Messages which decode successfully are deleted from the
// queue after the event has been handed to the subscribed consumer.
type Source[E any] struct {
	log    *slog.Logger
	sqs    Client
	decode func(types.Message) (E, error)

	queueURL          string
	maxNumOfMessages  int32
	visibilityTimeout int32
	waitTimeSeconds   int32
}

// New returns a [Source] emitting events decoded from SQS messages.
func New[E any](client Client, decode func(types.Message) (E, error), opts ...Option) *Source[E] {
	o := &options{
		logHandler:       noopLogHandler{},
		maxNumOfMessages: 10,
		waitTimeSeconds:  20,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Source[E]{
		log:               slog.New(o.logHandler),
		sqs:               client,
		decode:            decode,
		queueURL:          o.queueURL,
		maxNumOfMessages:  o.maxNumOfMessages,
		visibilityTimeout: o.visibilityTimeout,
		waitTimeSeconds:   o.waitTimeSeconds,
	}
}

// Subscribe implements the [gyre.EventSource] interface. Events are
// emitted on a dedicated goroutine in receive order. Disposing the
// returned value stops polling and waits for in-flight emissions to
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
	deleteCh := make(chan []types.Message)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(deleteCh)
		return s.receive(gctx, consumer, deleteCh)
	})
	g.Go(func() error {
		for msgs := range deleteCh {
			s.deleteBatch(gctx, msgs)
		}
		return nil
	})
	_ = g.Wait()
}

func (s *Source[E]) receive(ctx context.Context, consumer gyre.Consumer[E], deleteCh chan<- []types.Message) error {
	tracer := otel.Tracer("sqs")
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		spanCtx, span := tracer.Start(ctx, "Source.receive")
		resp, err := s.sqs.ReceiveMessage(spanCtx, &sqs.ReceiveMessageInput{
			QueueUrl:            &s.queueURL,
			MaxNumberOfMessages: s.maxNumOfMessages,
			VisibilityTimeout:   s.visibilityTimeout,
			WaitTimeSeconds:     s.waitTimeSeconds,
		})
		if err != nil {
			span.End()
			if ctx.Err() != nil {
				return nil
			}
			s.log.ErrorContext(ctx, "failed to receive messages", slog.Any("error", err))
			continue
		}
		span.SetAttributes(attribute.Int("num_of_messages", len(resp.Messages)))

		delivered := make([]types.Message, 0, len(resp.Messages))
		for _, msg := range resp.Messages {
			event, err := s.decode(msg)
			if err != nil {
				s.log.ErrorContext(
					spanCtx,
					"failed to decode message",
					slog.Any("sqs_message_id", msg.MessageId),
					slog.Any("error", err),
				)
				continue
			}

			consumer.Accept(event)
			delivered = append(delivered, msg)
		}
		span.End()

		if len(delivered) == 0 {
			continue
		}
		select {
		case deleteCh <- delivered:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Source[E]) deleteBatch(ctx context.Context, msgs []types.Message) {
	entries := make([]types.DeleteMessageBatchRequestEntry, 0, len(msgs))
	for _, msg := range msgs {
		entries = append(entries, types.DeleteMessageBatchRequestEntry{
			Id:            msg.MessageId,
			ReceiptHandle: msg.ReceiptHandle,
		})
	}

	resp, err := s.sqs.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: &s.queueURL,
		Entries:  entries,
	})
	if err != nil {
		s.log.ErrorContext(
			ctx,
			"failed to batch delete messages",
			slog.Int("num_of_delete_entries", len(entries)),
			slog.Any("error", err),
		)
		return
	}
	for _, entry := range resp.Failed {
		s.log.ErrorContext(
			ctx,
			"failed to delete message",
			slog.Any("sqs_message_id", entry.Id),
			slog.Any("sqs_error_code", entry.Code),
			slog.Bool("sqs_sender_fault", entry.SenderFault),
		)
	}
}
