package engine

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/roach88/notionsync/internal/notion"
)

// Backoff retries transient remote errors with exponential backoff and
// jitter. A Retry-After hint from the server raises the delay floor.
type Backoff struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the exponential delay (not a server Retry-After hint).
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier.
	Multiplier float64

	// Jitter is the maximum jitter as a fraction of the delay (0.0 to 1.0).
	Jitter float64

	// sleep waits for d or until ctx is done. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultBackoff returns the retry policy used when none is configured.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

// Delay returns the wait before retry number attempt (0-based) after lastErr.
func (b Backoff) Delay(attempt int, lastErr error) time.Duration {
	delay := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}

	if b.Jitter > 0 {
		//nolint:gosec // jitter is not security-critical
		delay += delay * b.Jitter * (2*rand.Float64() - 1)
		if delay < 0 {
			delay = float64(b.InitialDelay)
		}
	}

	d := time.Duration(delay)
	if hint := notion.RetryAfterHint(lastErr); hint > d {
		d = hint
	}
	return d
}

// Do calls op until it succeeds, returns a permanent error, or runs out of
// attempts. It returns the number of attempts made and the last error.
func (b Backoff) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	maxAttempts := b.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := b.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil {
			return attempt, nil
		}
		if !notion.IsTransient(err) || attempt >= maxAttempts {
			return attempt, err
		}
		if serr := sleep(ctx, b.Delay(attempt-1, err)); serr != nil {
			return attempt, serr
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
