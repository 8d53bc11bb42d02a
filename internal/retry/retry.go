// Package retry provides bounded retries with exponential backoff and jitter.
// Shared by the source prober and marketplace price pushes.
package retry

import (
	"context"
	"math/rand"
	"time"

	"crosslist/pkg/logger"
)

// Policy configures retry behavior.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt
	// (attempts = MaxRetries + 1).
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxJitter is added uniformly at random to every delay.
	MaxJitter time.Duration

	// Exponential doubles the delay per retry when set.
	Exponential bool
}

// DefaultPolicy matches the source-probe defaults: up to 3 retries,
// 5s * 2^k plus up to 1s of jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  3,
		BaseDelay:   5 * time.Second,
		MaxJitter:   time.Second,
		Exponential: true,
	}
}

// Delay returns the backoff before retry attempt k (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	if p.Exponential {
		d = p.BaseDelay << attempt
	}
	if p.MaxJitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.MaxJitter)))
	}
	return d
}

// Do runs fn until it succeeds or the retry budget is exhausted.
// The last error is returned. Sleeps are context-aware: cancellation
// during backoff returns ctx.Err() immediately.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.Delay(attempt - 1)
			logger.Debug(ctx, "retrying after backoff", "attempt", attempt, "delay", delay)
			if err := Sleep(ctx, delay); err != nil {
				return err
			}
		}

		if err := fn(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
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
