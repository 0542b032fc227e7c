// Package retry provides the one retry-with-backoff combinator shared by every
// provider call. Callers supply the predicate deciding which failures are transient.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Config is a retry policy. Waits grow geometrically from InitialBackoff,
// capped at MaxBackoff.
type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	JitterFraction    float64

	// OnRetry is called before each sleep with the failed attempt number.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultConfig is the policy for metadata lookups.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// ProviderConfig is the policy for catalog page fetches against list providers.
func ProviderConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        8 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// ProbeConfig is the policy for composition probes.
func ProbeConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// IsRetryable decides whether a failed attempt is worth repeating.
type IsRetryable func(error) bool

// Do runs fn until it succeeds, returns a non-retryable error, or runs out of attempts.
func Do(ctx context.Context, cfg Config, fn func() error, isRetryable IsRetryable) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	}, isRetryable)
	return err
}

// DoWithResult is Do for calls that produce a value. The value of the last
// attempt is returned alongside its error.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error), isRetryable IsRetryable) (T, error) {
	var (
		result T
		err    error
	)
	attempts := max(cfg.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		result, err = fn()
		if err == nil || attempt >= attempts || isRetryable == nil || !isRetryable(err) {
			return result, err
		}

		wait := Backoff(attempt, cfg)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}
}

// Backoff returns the jittered wait after the given failed attempt (1-based).
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt <= 0 {
		return 0
	}

	multiplier := cfg.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	wait := time.Duration(float64(cfg.InitialBackoff) * math.Pow(multiplier, float64(attempt-1)))
	if cfg.MaxBackoff > 0 && (wait > cfg.MaxBackoff || wait < 0) {
		wait = cfg.MaxBackoff
	}

	return withJitter(wait, cfg.JitterFraction)
}

// withJitter spreads d uniformly over [d*(1-fraction), d*(1+fraction)].
func withJitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || d <= 0 {
		return d
	}

	spread := float64(d) * fraction
	jittered := float64(d) + (rand.Float64()*2-1)*spread
	if jittered < 0 {
		return 0
	}
	return time.Duration(jittered)
}
