package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/logger"
)

const (
	DefaultMaxAttempts     = 3
	DefaultInitialInterval = 50 * time.Millisecond
	DefaultMaxInterval     = time.Second
)

// Config bounds how often a conflicting operation is re-run
type Config struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig returns the bounded policy used for concurrency conflicts
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
	}
}

func (c Config) backOff(ctx context.Context) backoff.BackOff {
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = DefaultMaxAttempts
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = DefaultInitialInterval
	}
	b.MaxInterval = c.MaxInterval
	if b.MaxInterval <= 0 {
		b.MaxInterval = DefaultMaxInterval
	}
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do runs op and re-runs it with exponential backoff while it fails with a
// retryable error, up to MaxAttempts runs in total. Any other error is returned
// immediately. Once attempts are exhausted the last conflict is returned.
func Do(ctx context.Context, cfg Config, log *logger.Logger, name string, op func(ctx context.Context) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !ierr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		log.Warnw("retrying after concurrency conflict",
			"operation", name,
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"wait", wait,
			"error", err,
		)
	}

	return backoff.RetryNotify(operation, cfg.backOff(ctx), notify)
}
