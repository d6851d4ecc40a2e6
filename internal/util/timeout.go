package util

import (
	"context"
	"errors"
	"time"

	"github.com/minitru/bunnyAI/pkg/common"
)

type timeoutResult[T any] struct {
	value T
	err   error
}

// RunWithTimeout runs fn with a context bounded by d. When the budget is
// exhausted the call is abandoned: its result is discarded and a
// *common.TimeoutError naming op is returned. A non-positive d disables the
// bound.
func RunWithTimeout[T any](ctx context.Context, op string, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan timeoutResult[T], 1)
	go func() {
		value, err := fn(callCtx)
		done <- timeoutResult[T]{value: value, err: err}
	}()

	var zero T
	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, &common.TimeoutError{Op: op, After: d}
		}
		return res.value, res.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, &common.TimeoutError{Op: op, After: d}
	}
}
