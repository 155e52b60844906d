package ctxutil

import (
	"context"
	"math/rand"
	"time"
)

// Sleep blocks the caller for the given duration. Returns the context error
// if the context is canceled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-timer.C:
		return nil
	}
}

// Jitter returns base plus a uniformly random duration in [0, spread).
func Jitter(base, spread time.Duration) time.Duration {
	if spread <= 0 {
		return base
	}
	return base + time.Duration(rand.Int63n(int64(spread)))
}

// Retry runs f till it succeeds or the context is canceled. Returns nil on
// success or the last error from f.
func Retry(ctx context.Context, interval time.Duration, f func() error) (err error) {
	for err = f(); err != nil && context.Cause(ctx) == nil; err = f() {
		if serr := Sleep(ctx, interval); serr != nil {
			return err
		}
	}
	return
}

// RetryTimeout is Retry bounded by timeout.
func RetryTimeout(ctx context.Context, interval, timeout time.Duration, f func() error) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return Retry(tctx, interval, f)
}
