package usecase

import (
	"context"
	"fmt"
	"time"
)

// callStep runs fn with a deadline of d (no deadline when d <= 0). The call
// runs on its own goroutine so an adapter that ignores ctx still cannot hold
// the caller past the deadline; a timed-out call is reported as ctx.Err().
// Panics inside fn are returned as errors.
func callStep[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	v, err, _ := callStepSettled(ctx, d, fn)
	return v, err
}

// callStepSettled is callStep that also returns a channel closed once fn has
// returned, even when the caller already gave up on it. Writes that must not
// overlap a later attempt wait on it before releasing their lock.
func callStepSettled[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error, <-chan struct{}) {
	var zero T
	settled := make(chan struct{})
	if err := ctx.Err(); err != nil {
		close(settled)
		return zero, err, settled
	}

	stepCtx := ctx
	cancel := context.CancelFunc(func() {})
	if d > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, d)
	}
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer close(settled)
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(stepCtx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err, settled
	case <-stepCtx.Done():
		return zero, stepCtx.Err(), settled
	}
}
