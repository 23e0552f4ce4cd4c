package gateway

import (
	"context"
	"time"

	"github.com/kverlaine/opsdeck/internal/clock"
)

// WithSoftTimeout races call against a timer of timeout. If the timer wins,
// the fallback (typically the last cached value re-wrapped as stale) is
// returned and the underlying call keeps running; its eventual result, if
// successful, is handed to onLate so a late-but-good response is not wasted.
// A failed call never surfaces as a raw failure either: it degrades to the
// fallback with the failure reason appended. onLate may be nil.
//
// Callers apply onLate results to shared state only after their own
// staleness check passes.
func WithSoftTimeout(
	ctx context.Context,
	clk clock.Clock,
	timeout time.Duration,
	call func(ctx context.Context) Result,
	fallback Result,
	onLate func(Result),
) Result {
	done := make(chan Result, 1)
	go func() {
		done <- call(ctx)
	}()

	expired := make(chan struct{})
	timer := clk.AfterFunc(timeout, func() { close(expired) })
	defer timer.Stop()

	select {
	case res := <-done:
		if !res.OK {
			return degrade(fallback, res.Error)
		}
		return res

	case <-expired:
		// Timer won. Keep the call alive and forward its late result.
		go func() {
			res := <-done
			if res.OK && onLate != nil {
				onLate(res)
			}
		}()
		fb := fallback
		fb.Stale = true
		return fb

	case <-ctx.Done():
		return degrade(fallback, ctx.Err().Error())
	}
}

// degrade returns the fallback marked stale with reason appended to its
// error text.
func degrade(fallback Result, reason string) Result {
	fb := fallback
	fb.Stale = true
	if fb.Error == "" {
		fb.Error = reason
	} else {
		fb.Error = fb.Error + "; " + reason
	}
	return fb
}
