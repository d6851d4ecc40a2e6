package util

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Shared runs fn once per key across concurrent callers. The shared run is
// detached from the caller that started it, so one caller going away does
// not fail the others; its deadline, if any, still applies. Each caller
// stops waiting when its own ctx is done.
func Shared[T any](ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (T, error)) (T, error) {
	ch := g.DoChan(key, func() (any, error) {
		runCtx := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithDeadline(runCtx, deadline)
			defer cancel()
		}
		return fn(runCtx)
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
