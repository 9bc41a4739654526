package bybit

import (
	"context"
	"time"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/jpillora/backoff"
)

// RetryConfig bounds retries of idempotent reads. Orders are never retried
// here; a failed placement surfaces to the caller.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
	Jitter       bool
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Factor:       2,
		Jitter:       true,
	}
}

// withRetry runs fn until it succeeds, fails with a non-transient error, or
// the retry budget is spent.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	b := &backoff.Backoff{
		Min:    c.retry.InitialDelay,
		Max:    c.retry.MaxDelay,
		Factor: c.retry.Factor,
		Jitter: c.retry.Jitter,
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !boterrors.IsTransient(err) || attempt >= c.retry.MaxRetries {
			return err
		}

		timer := time.NewTimer(b.Duration())
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
