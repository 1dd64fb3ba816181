package engine

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger. A no-op logger is used by default.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithFlushEvery sets how many attempts are batched between campaign stats
// flushes. The delivery log is still appended per attempt; only the
// denormalized aggregate write is batched.
func WithFlushEvery(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.flushEvery = n
		}
	}
}

// WithWriteRetry sets the bounded retry policy for store writes: attempts
// beyond the first, and the initial backoff which doubles per retry.
func WithWriteRetry(retries int, backoff time.Duration) Option {
	return func(d *Dispatcher) {
		if retries >= 0 {
			d.writeRetries = retries
		}
		if backoff > 0 {
			d.retryBackoff = backoff
		}
	}
}

// withSleep replaces the pacing sleep, used by tests to observe delays
// without waiting.
func withSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) {
		d.sleep = sleep
	}
}

// withNow replaces the clock, used by tests.
func withNow(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
