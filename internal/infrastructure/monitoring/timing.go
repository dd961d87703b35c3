package monitoring

import (
	"context"
	"time"
)

// Operation is any unit of work whose duration and outcome are worth
// observing.
type Operation func(ctx context.Context) error

// CompletionFunc receives the measured duration and outcome of one timed
// operation. err is nil on success.
type CompletionFunc func(duration time.Duration, err error)

// Timed decorates an operation with entry/exit timestamps and invokes
// onComplete once it finishes, error or not. The callback runs from a defer,
// so an operation that panics is still recorded before the panic propagates.
// The decorator is independent of any transport; HTTP middleware and
// background jobs compose with it the same way.
func Timed(op Operation, onComplete CompletionFunc) Operation {
	return func(ctx context.Context) (err error) {
		start := time.Now()
		defer func() {
			onComplete(time.Since(start), err)
		}()
		return op(ctx)
	}
}

// Completion returns a completion callback that records the request and, on
// failure, the error into the monitor.
func (pm *PerformanceMonitor) Completion() CompletionFunc {
	return func(duration time.Duration, err error) {
		pm.RecordRequest(duration)
		if err != nil {
			pm.RecordError(context.Background(), err)
		}
	}
}
