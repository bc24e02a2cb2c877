package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/fogfish/opts"
)

// Retry runs an operation until it succeeds, the error is not retryable, or
// the attempt budget runs out. Waits grow exponentially from the base delay
// and carry jitter so synchronized callers do not retry in lockstep.
type Retry struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	retryable   func(error) bool

	sleep func(context.Context, time.Duration) error
}

var (
	// WithMaxAttempts caps the total number of calls, including the first.
	WithMaxAttempts = opts.ForName[Retry, int]("maxAttempts")

	// WithBaseDelay sets the wait before the second attempt.
	WithBaseDelay = opts.ForName[Retry, time.Duration]("baseDelay")

	// WithMaxDelay caps the exponentially growing wait.
	WithMaxDelay = opts.ForName[Retry, time.Duration]("maxDelay")

	// WithRetryable decides which errors are worth another attempt. By
	// default every error is.
	WithRetryable = opts.ForName[Retry, func(error) bool]("retryable")
)

// NewRetry builds a retry policy: 3 attempts, 100ms base delay, 5s delay cap.
func NewRetry(options ...opts.Option[Retry]) (*Retry, error) {
	r := &Retry{
		maxAttempts: 3,
		baseDelay:   100 * time.Millisecond,
		maxDelay:    5 * time.Second,
		retryable:   func(error) bool { return true },
		sleep:       sleepCtx,
	}
	if err := opts.Apply(r, options); err != nil {
		return nil, err
	}
	return r, nil
}

// Do runs fn under the retry policy and returns its first successful result.
func (r *Retry) Do(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := r.sleep(ctx, r.delayFor(attempt)); err != nil {
				return "", err
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !r.retryable(err) {
			return "", err
		}
		slog.WarnContext(ctx, "operation failed, retrying",
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
			"error", err)
	}

	return "", fmt.Errorf("all %d attempts failed: %w", r.maxAttempts, lastErr)
}

// delayFor doubles the base delay per attempt, capped at maxDelay, plus up to
// 25% jitter.
func (r *Retry) delayFor(attempt int) time.Duration {
	delay := r.baseDelay << (attempt - 2)
	if delay > r.maxDelay || delay <= 0 {
		delay = r.maxDelay
	}
	jitter := time.Duration(rand.Int64N(int64(delay)/4 + 1))
	return delay + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
