package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/harunnryd/interview/pkg/resilience"
)

type RetryConfig struct {
	MaxAttempts int

	// Delays[i] is the wait after failed attempt i; the last entry repeats.
	Delays []time.Duration

	IsRetryable func(error) bool
	Sleep       func(ctx context.Context, d time.Duration) error
	OnRetry     func(attempt int, delay time.Duration, err error)
}

// Retry calls fn until it succeeds, fails with a non-retryable error, or
// MaxAttempts is reached. By default only rate limits are retried.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) (string, error)) (string, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if len(cfg.Delays) == 0 {
		cfg.Delays = []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second}
	}
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = resilience.IsRateLimit
	}
	if cfg.Sleep == nil {
		cfg.Sleep = SleepContext
	}
	var lastErr error
	for i := 0; i < cfg.MaxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !cfg.IsRetryable(err) || i == cfg.MaxAttempts-1 {
			break
		}
		delay := delayFor(cfg.Delays, i)
		if cfg.OnRetry != nil {
			cfg.OnRetry(i+1, delay, err)
		}
		if err := cfg.Sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("llm retry failed: %w", lastErr)
}

func delayFor(delays []time.Duration, attempt int) time.Duration {
	if attempt >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempt]
}

// SleepContext waits for d or until ctx ends.
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
