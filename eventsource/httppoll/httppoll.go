// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httppoll provides a gyre.EventSource which polls an HTTP endpoint.
package httppoll

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/z5labs/gyre"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var errStatusCode = errors.New("status code error")

type options struct {
	logger   *zap.Logger
	interval time.Duration

	maxRetries int
	waitMin    time.Duration
	waitMax    time.Duration

	maxRequests     uint32
	circuitInterval time.Duration
	circuitTimeout  time.Duration
	tripCount       uint32
}

// Option configures a [Source].
type Option func(*options)

// Interval configures how often the endpoint is polled.
func Interval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}

// Logger configures the zap.Logger used for poll failures and circuit
// state changes.
func Logger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// MaxAttempts configures the maximum number of retries per poll.
func MaxAttempts(n int) Option {
	return func(o *options) {
		o.maxRetries = n
	}
}

// MinWaitDuration configures the minimum wait between retries.
func MinWaitDuration(min time.Duration) Option {
	return func(o *options) {
		o.waitMin = min
	}
}

// MaxWaitDuration configures the maximum wait between retries.
func MaxWaitDuration(max time.Duration) Option {
	return func(o *options) {
		o.waitMax = max
	}
}

// CircuitMaxRequests is the maximum number of requests allowed to pass
// through while the circuit is half-open.
func CircuitMaxRequests(n uint32) Option {
	return func(o *options) {
		o.maxRequests = n
	}
}

// CircuitInterval is the cyclic period of the closed state after which
// the circuit clears its internal counts.
func CircuitInterval(d time.Duration) Option {
	return func(o *options) {
		o.circuitInterval = d
	}
}

// CircuitTimeout is the period of the open state, after which the
// circuit becomes half-open.
func CircuitTimeout(d time.Duration) Option {
	return func(o *options) {
		o.circuitTimeout = d
	}
}

// CircuitTripCount determines the number of consecutive failures
// required to trip the circuit.
func CircuitTripCount(n uint32) Option {
	return func(o *options) {
		o.tripCount = n
	}
}

// Source polls an HTTP endpoint on a fixed interval and emits one
// event per successful response. Requests are retried with backoff and
// guarded by a circuit breaker so a failing endpoint is not hammered.
type Source[E any] struct {
	log      *zap.Logger
	client   *retryablehttp.Client
	cb       *gobreaker.CircuitBreaker
	url      string
	interval time.Duration
	decode   func(*http.Response) (E, error)
}

// New returns a [Source] polling url and decoding each response into
// an event.
func New[E any](url string, decode func(*http.Response) (E, error), opts ...Option) *Source[E] {
	o := &options{
		logger:         zap.NewNop(),
		interval:       10 * time.Second,
		maxRetries:     2,
		waitMin:        100 * time.Millisecond,
		waitMax:        5 * time.Second,
		maxRequests:    1,
		tripCount:      5,
		circuitTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}

	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = o.maxRetries
	rc.RetryWaitMin = o.waitMin
	rc.RetryWaitMax = o.waitMax

	log := o.logger.Named("httppoll")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        url,
		MaxRequests: o.maxRequests,
		Interval:    o.circuitInterval,
		Timeout:     o.circuitTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.tripCount
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			switch to {
			case gobreaker.StateOpen:
				log.Error("circuit has been opened", zap.String("url", name))
			case gobreaker.StateHalfOpen:
				log.Warn("circuit is now half open and letting some requests through", zap.Uint32("max_requests_allowed_through", o.maxRequests))
			case gobreaker.StateClosed:
				log.Info("circuit has been closed", zap.String("url", name))
			}
		},
	})

	return &Source[E]{
		log:      log,
		client:   rc,
		cb:       cb,
		url:      url,
		interval: o.interval,
		decode:   decode,
	}
}

// Subscribe implements the [gyre.EventSource] interface. Events are
// emitted on a dedicated goroutine, one per successful poll. Disposing
// the returned value stops polling and waits for an in-flight poll to
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
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		event, err := s.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error("failed to poll", zap.String("url", s.url), zap.Error(err))
			continue
		}
		consumer.Accept(event)
	}
}

func (s *Source[E]) poll(ctx context.Context) (E, error) {
	var zero E

	v, err := s.cb.Execute(func() (any, error) {
		req, err := retryablehttp.NewRequest(http.MethodGet, s.url, nil)
		if err != nil {
			return nil, err
		}

		resp, err := s.client.Do(req.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			resp.Body.Close()
			return nil, errStatusCode
		}
		return resp, nil
	})
	if err != nil {
		return zero, err
	}

	resp := v.(*http.Response)
	defer resp.Body.Close()

	return s.decode(resp)
}
