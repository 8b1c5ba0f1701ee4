// Package retry provides the policies consulted by the transactional executor
// after a failed attempt.
//
// A policy receives the number of failures so far (starting at 1) and the
// root cause of the latest failure, and reports whether another attempt
// should run. Policies that wait between attempts block inside Retry and
// return false when the context ends first.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-sqltx/config"
)

// Policy decides whether a failed attempt is retried.
type Policy interface {
	Retry(ctx context.Context, failCount int, cause error) bool
}

// Func adapts a function to a Policy.
type Func func(ctx context.Context, failCount int, cause error) bool

func (f Func) Retry(ctx context.Context, failCount int, cause error) bool {
	return f(ctx, failCount, cause)
}

// Classifier reports whether an error is transient.
type Classifier func(error) bool

// Always classifies every error as transient.
func Always(error) bool { return true }

// None never retries.
var None Policy = Func(func(context.Context, int, error) bool { return false })

// MaxAttempts retries up to retries times when classify accepts the cause.
// An operation failing every time therefore runs retries+1 times.
func MaxAttempts(retries int, classify Classifier) Policy {
	return Func(func(_ context.Context, failCount int, cause error) bool {
		return failCount <= retries && classify(cause)
	})
}

// BackoffConfig configures the exponential delay between attempts.
type BackoffConfig struct {
	// Retries is the number of retries after the first attempt.
	Retries int
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Max caps a single delay.
	Max time.Duration
	// Multiplier grows the delay after every retry.
	Multiplier float64
	// Jitter randomizes each delay by +/- Jitter*delay.
	Jitter float64
}

// Backoff retries like MaxAttempts, sleeping an exponentially growing delay
// before every retry. It gives up when ctx is done while waiting.
func Backoff(cfg BackoffConfig, classify Classifier) Policy {
	return Func(func(ctx context.Context, failCount int, cause error) bool {
		if failCount > cfg.Retries || !classify(cause) {
			return false
		}
		return sleep(ctx, delay(cfg, failCount))
	})
}

// delay returns the wait before retry number failCount.
func delay(cfg BackoffConfig, failCount int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.Initial
	b.RandomizationFactor = cfg.Jitter
	// zero values keep the library defaults
	if cfg.Max > 0 {
		b.MaxInterval = cfg.Max
	}
	if cfg.Multiplier >= 1 {
		b.Multiplier = cfg.Multiplier
	}
	b.Reset()

	var d time.Duration
	for range failCount {
		d = b.NextBackOff()
	}
	if d == backoff.Stop {
		return b.MaxInterval
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// WithBudget limits policy to the retry rate allowed by limiter. Retries
// beyond the budget are refused instead of queued. A token is only spent
// when policy agrees to retry.
func WithBudget(policy Policy, limiter *rate.Limiter) Policy {
	return Func(func(ctx context.Context, failCount int, cause error) bool {
		if limiter.Tokens() < 1 {
			return false
		}
		if !policy.Retry(ctx, failCount, cause) {
			return false
		}
		return limiter.Allow()
	})
}

// FromConfig builds the policy described by cfg.
func FromConfig(cfg config.RetryConfig, classify Classifier) Policy {
	if !cfg.Enabled || cfg.Attempts == 0 {
		return None
	}

	var policy Policy
	if cfg.Backoff.Initial > 0 {
		policy = Backoff(BackoffConfig{
			Retries:    cfg.Attempts,
			Initial:    cfg.Backoff.Initial,
			Max:        cfg.Backoff.Max,
			Multiplier: cfg.Backoff.Multiplier,
			Jitter:     cfg.Backoff.Jitter,
		}, classify)
	} else {
		policy = MaxAttempts(cfg.Attempts, classify)
	}

	if cfg.Budget.Rate > 0 {
		burst := max(cfg.Budget.Burst, 1)
		policy = WithBudget(policy, rate.NewLimiter(rate.Limit(cfg.Budget.Rate), burst))
	}
	return policy
}
