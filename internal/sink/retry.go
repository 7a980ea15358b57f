package sink

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jittakal/kafeventexport/internal/errors"
)

// RetryConfig configures the flush retry behavior.
type RetryConfig struct {
	Enabled           bool
	MaxAttempts       int
	InitialBackoffMS  int
	MaxBackoffMS      int
	BackoffMultiplier float64
	Jitter            bool
}

// Retrier retries failed sink operations with exponential backoff.
// Only errors classified retryable by the errors package are retried;
// anything else is returned immediately.
type Retrier struct {
	config RetryConfig
	logger *slog.Logger
}

// NewRetrier creates a new retrier.
func NewRetrier(config RetryConfig, logger *slog.Logger) *Retrier {
	return &Retrier{
		config: config,
		logger: logger,
	}
}

// Do runs fn, retrying retryable failures until the attempt budget is
// exhausted or the context is cancelled. The last error is returned.
func (r *Retrier) Do(ctx context.Context, operation string, fn func() error) error {
	if !r.config.Enabled {
		return fn()
	}

	maxAttempts := r.config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	backoff := time.Duration(r.config.InitialBackoffMS) * time.Millisecond
	maxBackoff := time.Duration(r.config.MaxBackoffMS) * time.Millisecond

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		if !errors.IsRetryable(err) || attempt == maxAttempts {
			return err
		}

		delay := backoff
		if r.config.Jitter {
			// full jitter: uniform in [0, backoff]
			delay = time.Duration(rand.Int63n(int64(backoff) + 1))
		}

		r.logger.Warn("sink operation failed, retrying",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"backoff", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		backoff = time.Duration(float64(backoff) * r.config.BackoffMultiplier)
		if maxBackoff > 0 && backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return err
}
