// Package poll runs a repeatable asynchronous probe on a timer until it
// reports a value, with separate delays for "not ready yet" and for
// transient failures, and explicit cancellation.
package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Default delays between probes.
const (
	DefaultNotReadyDelay = 1000 * time.Millisecond
	DefaultErrorDelay    = 2000 * time.Millisecond
)

// ErrExhausted is reported when MaxAttempts or Timeout is reached before a
// probe became ready.
var ErrExhausted = errors.New("poll: gave up waiting")

type outcome int

const (
	outcomeNotReady outcome = iota
	outcomeReady
	outcomeTransientError
)

// Result is what a single probe observed.
type Result[T any] struct {
	outcome outcome
	value   T
	err     error
}

// NotReady means the awaited event has not happened yet.
func NotReady[T any]() Result[T] {
	return Result[T]{outcome: outcomeNotReady}
}

// Ready carries the awaited value and ends polling.
func Ready[T any](v T) Result[T] {
	return Result[T]{outcome: outcomeReady, value: v}
}

// TransientError means the probe failed but polling should continue after
// the longer error delay.
func TransientError[T any](err error) Result[T] {
	return Result[T]{outcome: outcomeTransientError, err: err}
}

// Probe performs one check.
type Probe[T any] func(ctx context.Context) Result[T]

// Config holds the scheduling parameters. Zero delays fall back to the
// defaults; zero MaxAttempts and Timeout mean unbounded.
type Config struct {
	NotReadyDelay time.Duration
	ErrorDelay    time.Duration
	MaxAttempts   int
	Timeout       time.Duration
}

// Scheduler starts polling loops sharing one configuration.
type Scheduler struct {
	cfg   Config
	log   *zap.Logger
	after func(time.Duration) <-chan time.Time
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used to report transient probe failures.
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithAfter replaces time.After, letting tests drive the delays.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) {
		if after != nil {
			s.after = after
		}
	}
}

// NewScheduler returns a Scheduler for cfg.
func NewScheduler(cfg Config, opts ...Option) *Scheduler {
	if cfg.NotReadyDelay <= 0 {
		cfg.NotReadyDelay = DefaultNotReadyDelay
	}
	if cfg.ErrorDelay <= 0 {
		cfg.ErrorDelay = DefaultErrorDelay
	}
	s := &Scheduler{
		cfg:   cfg,
		log:   zap.NewNop(),
		after: time.After,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// Handle controls one running polling loop.
type Handle struct {
	cancel   context.CancelFunc
	done     chan struct{}
	attempts atomic.Int64

	mu  sync.Mutex
	err error
}

// Cancel stops the loop. No probe is issued afterwards and the result of
// an in-flight probe is dropped. Cancel is safe to call more than once.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed when the loop has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Attempts is the number of probes issued so far.
func (h *Handle) Attempts() int { return int(h.attempts.Load()) }

// Err explains why the loop stopped: nil after a ready value, the context
// error after cancellation, or ErrExhausted.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

// Start runs probe on its own goroutine until it is ready, ctx is done,
// the handle is cancelled or the configured bound is hit. Probes never
// overlap: the next one is scheduled only after the previous returned.
// onReady runs at most once, on the polling goroutine.
//
// Timeout covers the whole loop, probes included: when it expires the
// context passed to a running probe is cancelled and the loop stops with
// ErrExhausted.
func Start[T any](ctx context.Context, s *Scheduler, probe Probe[T], onReady func(T)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	var expired atomic.Bool
	if s.cfg.Timeout > 0 {
		deadline := s.after(s.cfg.Timeout)
		go func() {
			select {
			case <-deadline:
				expired.Store(true)
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	// stop records why the loop ended once ctx is done.
	stop := func() {
		if expired.Load() {
			s.log.Info("polling stopped", zap.Int("attempts", h.Attempts()), zap.String("reason", "timeout"))
			h.finish(ErrExhausted)
			return
		}
		h.finish(ctx.Err())
	}

	go func() {
		defer close(h.done)
		defer cancel()

		for {
			if ctx.Err() != nil {
				stop()
				return
			}
			if s.cfg.MaxAttempts > 0 && h.Attempts() >= s.cfg.MaxAttempts {
				s.log.Info("polling stopped", zap.Int("attempts", h.Attempts()), zap.String("reason", "max attempts"))
				h.finish(ErrExhausted)
				return
			}

			attempt := h.attempts.Add(1)
			res := runProbe(ctx, probe)

			// Results that arrive after cancellation are discarded.
			if ctx.Err() != nil {
				stop()
				return
			}

			var delay time.Duration
			switch res.outcome {
			case outcomeReady:
				onReady(res.value)
				h.finish(nil)
				return
			case outcomeTransientError:
				s.log.Warn("probe failed, backing off",
					zap.Int64("attempt", attempt),
					zap.Duration("retry_in", s.cfg.ErrorDelay),
					zap.Error(res.err),
				)
				delay = s.cfg.ErrorDelay
			default:
				delay = s.cfg.NotReadyDelay
			}

			select {
			case <-ctx.Done():
				stop()
				return
			case <-s.after(delay):
			}
		}
	}()

	return h
}

// runProbe converts a panicking probe into a transient error.
func runProbe[T any](ctx context.Context, probe Probe[T]) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = TransientError[T](fmt.Errorf("probe panicked: %v", r))
		}
	}()
	return probe(ctx)
}
