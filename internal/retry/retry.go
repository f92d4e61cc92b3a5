// Package retry executes remote calls with bounded exponential backoff.
//
// Remote provider errors are retried only when they classify as rate limit,
// server error or timeout. Any other error is unexpected and is retried
// unconditionally while attempts remain.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pageza/kitchen-assistant/backend/internal/logger"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = time.Second
)

// ErrExhausted is returned when no attempt was made or the loop ended without
// a result.
var ErrExhausted = errors.New("retry: attempts exhausted without a result")

// Outcome of a single attempt.
type Outcome int

const (
	Success Outcome = iota
	RetryableFailure
	FatalFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable_failure"
	default:
		return "fatal_failure"
	}
}

// Attempt records one try of a remote call. It only lives for the duration
// of a Do invocation and is handed to the Observer.
type Attempt struct {
	Operation      string
	Index          int
	Outcome        Outcome
	Classification Classification
	Delay          time.Duration
	Err            error
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Caller holds the retry policy. The zero value is not usable; use New.
type Caller struct {
	MaxRetries   int
	InitialDelay time.Duration
	Sleep        SleepFunc
	Observer     func(Attempt)
	logger       *slog.Logger
}

// New returns a Caller with the given policy and a context-aware sleep.
func New(maxRetries int, initialDelay time.Duration, l *slog.Logger) *Caller {
	return &Caller{
		MaxRetries:   maxRetries,
		InitialDelay: initialDelay,
		Sleep:        SleepContext,
		logger:       logger.OrDefault(l),
	}
}

// Do runs fn until it succeeds, fails with a non-retryable remote error, or
// the attempts run out. The delay before retry n (0-based) is
// InitialDelay * 2^n.
func Do[T any](ctx context.Context, c *Caller, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	log := logger.OrDefault(c.logger).With("operation", operation)

	for attempt := 0; attempt < c.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			c.observe(Attempt{Operation: operation, Index: attempt, Outcome: Success})
			return result, nil
		}

		final := attempt == c.MaxRetries-1
		class, remote := Classify(err)
		if remote {
			log.ErrorContext(ctx, "provider call failed",
				"attempt", attempt+1,
				"max_attempts", c.MaxRetries,
				"classification", class.String(),
				"error", err)
			if final || !class.Retryable() {
				c.observe(Attempt{Operation: operation, Index: attempt, Outcome: FatalFailure, Classification: class, Err: err})
				return zero, err
			}
		} else {
			log.ErrorContext(ctx, "unexpected error calling provider",
				"attempt", attempt+1,
				"max_attempts", c.MaxRetries,
				"error", err)
			if final {
				c.observe(Attempt{Operation: operation, Index: attempt, Outcome: FatalFailure, Classification: class, Err: err})
				return zero, err
			}
		}

		delay := c.delay(attempt)
		c.observe(Attempt{Operation: operation, Index: attempt, Outcome: RetryableFailure, Classification: class, Delay: delay, Err: err})
		log.InfoContext(ctx, "retrying provider call", "delay", delay.String(), "next_attempt", attempt+2)

		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return zero, errors.Join(sleepErr, err)
		}
	}

	return zero, ErrExhausted
}

func (c *Caller) delay(attempt int) time.Duration {
	return c.InitialDelay * time.Duration(1<<attempt)
}

func (c *Caller) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep == nil {
		return SleepContext(ctx, d)
	}
	return c.Sleep(ctx, d)
}

func (c *Caller) observe(a Attempt) {
	if c.Observer != nil {
		c.Observer(a)
	}
}

// SleepContext blocks for d, returning early with ctx.Err() if ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
