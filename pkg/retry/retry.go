package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// jitterFactor spreads each delay over +/- 25% when Jitter is set.
const jitterFactor = 0.25

// Config holds retry configuration.
type Config struct {
	Enabled      bool
	MaxAttempts  int // retries after the first call
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool

	// Permanent reports errors that must not be retried. Nil retries everything.
	Permanent func(error) bool
	// Notify, when set, is called before each wait with the failed
	// attempt's error and the upcoming delay.
	Notify func(err error, next time.Duration)
}

func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// PermanentErrors builds a Permanent classifier matching any of the given
// sentinels via errors.Is.
func PermanentErrors(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// ErrExhausted wraps the last error once every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// NewBackOff builds the exponential schedule described by cfg. The schedule
// never expires on elapsed time; MaxAttempts bounds it instead.
func NewBackOff(cfg Config) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.Multiplier = max(cfg.Multiplier, 1)
	b.MaxInterval = cfg.MaxDelay
	if b.MaxInterval <= 0 {
		b.MaxInterval = time.Duration(math.MaxInt64)
	}
	b.RandomizationFactor = 0
	if cfg.Jitter {
		b.RandomizationFactor = jitterFactor
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Retry executes fn with exponential backoff.
func Retry(ctx context.Context, cfg Config, fn func() error) error {
	_, err := Do(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Do executes fn with exponential backoff and returns its result. Permanent
// errors and context errors are returned unwrapped.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	if !cfg.Enabled {
		return fn()
	}

	var (
		result T
		calls  int
	)
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		calls++

		var err error
		result, err = fn()
		switch {
		case err == nil:
			return nil
		case cfg.Permanent != nil && cfg.Permanent(err),
			errors.Is(err, context.Canceled),
			errors.Is(err, context.DeadlineExceeded):
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(NewBackOff(cfg), uint64(max(cfg.MaxAttempts, 0))), ctx)

	err := backoff.RetryNotify(operation, policy, cfg.Notify)
	if err == nil {
		return result, nil
	}

	var zero T
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return zero, err
	}
	if cfg.Permanent != nil && cfg.Permanent(err) {
		return zero, err
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, calls, err)
}
