package util

import (
	"context"
	"errors"
	"time"

	"github.com/minitru/bunnyAI/pkg/common"
)

// MaxBackoff caps the pause between two attempts.
const MaxBackoff = 30 * time.Second

// RetryWithBackoff calls fn up to maxTries times until it returns a nil
// error. The pause starts at base and doubles after every failure, up to
// MaxBackoff. Context errors and bad requests are returned immediately since
// repeating the call cannot change them.
func RetryWithBackoff[T any](ctx context.Context, maxTries int, base time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var zero T
	var lastErr error
	delay := base
	for i := range maxTries {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !retryable(err) {
			return zero, err
		}
		lastErr = err

		if delay <= 0 || i == maxTries-1 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, MaxBackoff)
	}
	return zero, lastErr
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var bad *common.BadRequestError
	return !errors.As(err, &bad)
}
