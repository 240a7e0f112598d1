// Package retry provides the single, shared, configurable exponential-
// backoff helper. Both of its uses are in the LLM Client: around each
// model call, and around the write of that call's audit row to the
// Store (spec §9). It is
// deliberately not used by the Task Engine: illegal transitions and
// validation failures are not retriable.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Config controls attempt count and backoff shape.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultConfig matches the original's tenacity policy
// (stop_after_attempt(3), wait_exponential(multiplier=1, min=1, max=10)):
// up to 3 attempts, base 1s, capped at 10s, full jitter.
var DefaultConfig = Config{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
	MaxDelay:    10 * time.Second,
}

// Do calls fn up to cfg.MaxAttempts times, sleeping a jittered exponential
// backoff between attempts. It returns nil on the first success, or the
// last error if every attempt failed. It returns ctx.Err() immediately if
// the context is cancelled while waiting between attempts.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		delay := backoffDelay(cfg, attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// backoffDelay computes the jittered delay before the given attempt's
// successor, following pkg/queue/worker.go's pollInterval jitter shape:
// a base doubled per attempt, capped, with the final delay uniformly
// distributed over [0, cap).
func backoffDelay(cfg Config, attempt int) time.Duration {
	base := cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		base *= 2
		if base > cfg.MaxDelay {
			base = cfg.MaxDelay
			break
		}
	}
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(base)))
}
