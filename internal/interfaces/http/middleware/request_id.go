// Package middleware wires the admission gates and cross-cutting concerns
// into the gin request pipeline.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scribeflow/gatekeeper/pkg/constants"
)

// RequestID assigns each request a correlation id, honoring one supplied by
// the caller, and propagates it through the context and response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(constants.HeaderRequestID, requestID)

		c.Next()
	}
}
