package backend

import (
	"context"
	"time"
)

// RetryPolicy retries failed backend calls with exponential backoff:
// attempt n waits BaseDelay * 2^n (2s, 4s, 8s with the default base).
// The zero value makes exactly one attempt. Waits stop growing after
// maxBackoffShift doublings.
type RetryPolicy struct {
	Retries   int
	BaseDelay time.Duration
	// Sleep waits between attempts; defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error, onRetry func(attempt int, wait time.Duration, err error)) error {
	attempts := p.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if attempt == attempts || !retryable(ctx, err) {
			return err
		}

		wait := p.backoff(attempt)
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}
		if sleepErr := p.sleep(ctx, wait); sleepErr != nil {
			return err
		}
	}
	return err
}

const maxBackoffShift = 8

func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	shift := attempt
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return base * time.Duration(1<<uint(shift))
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if httpErr, ok := AsHTTPError(err); ok {
		return httpErr.Retryable()
	}
	return true
}

// SleepContext blocks for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
