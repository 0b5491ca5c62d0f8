package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/notionsync/internal/notion"
)

func transient() error {
	return &notion.APIError{Status: 503, Code: "service_unavailable", Transient: true}
}

func TestBackoff_DelayExponentialAndCapped(t *testing.T) {
	b := Backoff{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, b.Delay(0, nil))
	assert.Equal(t, 200*time.Millisecond, b.Delay(1, nil))
	assert.Equal(t, 400*time.Millisecond, b.Delay(2, nil))
	assert.Equal(t, time.Second, b.Delay(5, nil))
}

func TestBackoff_DelayRetryAfterFloor(t *testing.T) {
	b := Backoff{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	err := &notion.APIError{Status: 429, Transient: true, RetryAfter: 5 * time.Second}

	assert.Equal(t, 5*time.Second, b.Delay(0, err), "Retry-After above MaxDelay still wins")
	assert.Equal(t, 5*time.Second, b.Delay(2, joinContext(err)))
}

func joinContext(err error) error {
	return errors.Join(errors.New("listing"), err)
}

func TestBackoff_DelayJitterBounds(t *testing.T) {
	b := Backoff{InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2, Jitter: 0.2}
	for i := 0; i < 100; i++ {
		d := b.Delay(1, nil)
		assert.GreaterOrEqual(t, d, 1600*time.Millisecond)
		assert.LessOrEqual(t, d, 2400*time.Millisecond)
	}
}

func TestBackoff_DoRetriesTransient(t *testing.T) {
	rec := &recordedSleep{}
	b := testBackoff(rec)

	calls := 0
	attempts, err := b.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return transient()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, rec.Delays())
}

func TestBackoff_DoStopsOnPermanent(t *testing.T) {
	rec := &recordedSleep{}
	b := testBackoff(rec)
	permanent := &notion.APIError{Status: 404, Code: notion.CodeNotFound}

	attempts, err := b.Do(context.Background(), func(context.Context) error {
		return permanent
	})
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, permanent)
	assert.Empty(t, rec.Delays())
}

func TestBackoff_DoGivesUp(t *testing.T) {
	rec := &recordedSleep{}
	b := testBackoff(rec)
	b.MaxAttempts = 3

	attempts, err := b.Do(context.Background(), func(context.Context) error {
		return transient()
	})
	assert.Equal(t, 3, attempts)
	assert.True(t, notion.IsTransient(err))
	assert.Len(t, rec.Delays(), 2)
}

func TestBackoff_DoHonorsCancellation(t *testing.T) {
	b := DefaultBackoff()
	b.InitialDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := b.Do(ctx, func(context.Context) error {
			calls++
			return transient()
		})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Do kept sleeping after cancellation")
	}
	assert.Equal(t, 1, calls)
}

func TestBackoff_ZeroAttemptsMeansOne(t *testing.T) {
	b := Backoff{}
	attempts, err := b.Do(context.Background(), func(context.Context) error {
		return transient()
	})
	assert.Equal(t, 1, attempts)
	assert.Error(t, err)
}
