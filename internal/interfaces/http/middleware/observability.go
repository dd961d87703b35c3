package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scribeflow/gatekeeper/internal/infrastructure/monitoring"
)

// Observability is the gin adapter over the transport-agnostic timing
// decorator: the rest of the chain runs as a timed operation whose completion
// callback feeds the performance monitor and Prometheus. It runs outermost,
// above recovery, so the measurement covers the whole chain and lands
// regardless of which gate denied the request or whether a handler panicked.
func Observability(perf *monitoring.PerformanceMonitor, metrics *monitoring.Metrics) gin.HandlerFunc {
	complete := perf.Completion()

	return func(c *gin.Context) {
		op := monitoring.Timed(func(context.Context) error {
			c.Next()
			return firstError(c)
		}, func(duration time.Duration, err error) {
			complete(duration, err)

			// Route template keeps metric label cardinality bounded.
			path := c.FullPath()
			if path == "" {
				path = "not_found"
			}
			metrics.RecordRequest(c.Request.Method, path, c.Writer.Status(), duration)
		})

		_ = op(c.Request.Context())
	}
}

func firstError(c *gin.Context) error {
	if len(c.Errors) == 0 {
		return nil
	}
	return c.Errors[0].Err
}
