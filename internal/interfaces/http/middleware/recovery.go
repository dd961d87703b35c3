package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/scribeflow/gatekeeper/pkg/errors"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

// Recovery converts panics into a structured 500 without leaking internals.
// The panic is attached as a context error so the observability layer above
// counts the request as failed.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error(c.Request.Context(), "panic recovered", nil,
					logger.Any("panic", r),
					logger.String("path", c.Request.URL.Path),
				)

				_ = c.Error(fmt.Errorf("panic: %v", r))

				appErr := errors.ErrServerError("internal server error")
				c.AbortWithStatusJSON(appErr.HTTPStatus(), errors.ToErrorResponse(appErr))
			}
		}()

		c.Next()
	}
}
