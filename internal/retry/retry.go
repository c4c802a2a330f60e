// Package retry is the generic attempt harness shared by the git store.
// The body decides retryability by marking an error with Again; everything
// else propagates immediately.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Config bounds the attempt loop.
type Config struct {
	MaxAttempts int           // default 5
	Delay       time.Duration // constant delay between attempts, default 0
}

const defaultMaxAttempts = 5

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	return c
}

type againError struct {
	err error
}

func (e *againError) Error() string { return e.err.Error() }
func (e *againError) Unwrap() error { return e.err }

// Again marks err as retryable. Do will run another attempt when the body
// returns an error carrying this marker.
func Again(err error) error {
	if err == nil {
		return nil
	}
	return &againError{err: err}
}

// Do runs body up to cfg.MaxAttempts times, sleeping cfg.Delay between
// attempts. Only errors marked with Again are retried. Each attempt produces
// one structured log record; the final failure logs at error level.
func Do[T any](ctx context.Context, log *slog.Logger, name string, cfg Config, body func(attempt int) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		v, err := body(attempt)
		if err == nil {
			if attempt > 1 {
				log.Info("operation succeeded after previous failures",
					"name", name, "attempt", attempt, "maxAttempts", cfg.MaxAttempts)
			}
			return v, nil
		}

		var again *againError
		if !errors.As(err, &again) {
			return zero, err
		}
		lastErr = again.err
		if attempt == cfg.MaxAttempts {
			break
		}
		log.Warn("operation failed, retrying",
			"name", name, "attempt", attempt, "maxAttempts", cfg.MaxAttempts, "errorMessage", lastErr.Error())
		if cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(cfg.Delay):
			}
		}
	}
	log.Error("operation failed after all attempts",
		"name", name, "maxAttempts", cfg.MaxAttempts, "errorMessage", lastErr.Error())
	return zero, lastErr
}
