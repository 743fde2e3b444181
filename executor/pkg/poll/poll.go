// Package poll holds the interval loops shared by the scanners and the evaluator.
package poll

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Sleep blocks for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	timer := clk.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Every calls fn immediately and then once per interval, measured from the end of the previous
// call, until ctx is done.
func Every(ctx context.Context, clk clock.Clock, interval time.Duration, fn func(ctx context.Context)) {
	for {
		if ctx.Err() != nil {
			return
		}
		fn(ctx)
		if err := Sleep(ctx, clk, interval); err != nil {
			return
		}
	}
}

// Until calls fn once per interval until it reports done, and returns its value. The only
// error returned is ctx's.
func Until[T any](ctx context.Context, clk clock.Clock, interval time.Duration, fn func(ctx context.Context) (T, bool)) (T, error) {
	for {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		if v, done := fn(ctx); done {
			return v, nil
		}
		if err := Sleep(ctx, clk, interval); err != nil {
			var zero T
			return zero, err
		}
	}
}
