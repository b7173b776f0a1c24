package retryutil

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultRetryDelay    = 2 * time.Second
	defaultRetryTimeout  = 12 * time.Second
	defaultRetryAttempts = 3
	maxRetryDelay        = time.Minute
)

type Options struct {
	// Delay before the first attempt; it doubles after every failure.
	Delay    time.Duration
	Timeout  time.Duration
	Attempts int
}

// AsyncRetry runs fn in the background until it succeeds, the attempts run
// out or ctx is done. Each attempt gets its own timeout. done, when not nil,
// receives the final error.
func AsyncRetry(ctx context.Context, logger *slog.Logger, name string, opts Options, fn func(ctx context.Context) error, done func(error)) {
	if fn == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts = normalize(opts)
	logger.Info(name+"_retry_scheduled", "delay", opts.Delay.String(), "timeout", opts.Timeout.String(), "attempts", opts.Attempts)
	go func() {
		err := Retry(ctx, logger, name, opts, fn)
		if done != nil {
			done(err)
		}
	}()
}

// Retry is the blocking form of AsyncRetry.
func Retry(ctx context.Context, logger *slog.Logger, name string, opts Options, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	opts = normalize(opts)
	delay := opts.Delay
	var err error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		err = fn(attemptCtx)
		cancel()
		if err == nil {
			logger.Info(name+"_retry_ok", "attempt", attempt)
			return nil
		}
		logger.Warn(name+"_retry_failed", "attempt", attempt, "error", err.Error())
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
	return err
}

func normalize(opts Options) Options {
	if opts.Delay <= 0 {
		opts.Delay = defaultRetryDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRetryTimeout
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultRetryAttempts
	}
	return opts
}
