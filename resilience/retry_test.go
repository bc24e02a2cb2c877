package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsFirstTry(t *testing.T) {
	r, err := NewRetry()
	require.NoError(t, err)

	calls := 0
	result, err := r.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	r, err := NewRetry(WithMaxAttempts(3))
	require.NoError(t, err)
	r.sleep = func(context.Context, time.Duration) error { return nil }

	calls := 0
	result, err := r.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "third time lucky", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", result)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	r, err := NewRetry(WithMaxAttempts(2))
	require.NoError(t, err)
	r.sleep = func(context.Context, time.Duration) error { return nil }

	boom := errors.New("boom")
	calls := 0
	_, err = r.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "all 2 attempts failed")
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	fatal := errors.New("bad request")
	r, err := NewRetry(
		WithMaxAttempts(5),
		WithRetryable(func(err error) bool { return !errors.Is(err, fatal) }),
	)
	require.NoError(t, err)
	r.sleep = func(context.Context, time.Duration) error { return nil }

	calls := 0
	_, err = r.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		return "", fatal
	})
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestRetryBackoffGrows(t *testing.T) {
	r, err := NewRetry(
		WithMaxAttempts(4),
		WithBaseDelay(100*time.Millisecond),
		WithMaxDelay(time.Second),
	)
	require.NoError(t, err)

	var delays []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, _ = r.Do(context.Background(), func(context.Context) (string, error) {
		return "", errors.New("always fails")
	})

	require.Len(t, delays, 3)
	// 100ms, 200ms, 400ms base plus up to 25% jitter each
	assert.GreaterOrEqual(t, delays[0], 100*time.Millisecond)
	assert.Less(t, delays[0], 150*time.Millisecond)
	assert.GreaterOrEqual(t, delays[1], 200*time.Millisecond)
	assert.GreaterOrEqual(t, delays[2], 400*time.Millisecond)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	r, err := NewRetry(WithMaxAttempts(5), WithBaseDelay(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err = r.Do(ctx, func(context.Context) (string, error) {
		calls++
		return "", errors.New("fail")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
