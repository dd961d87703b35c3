package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/scribeflow/gatekeeper/internal/domain/service"
	"github.com/scribeflow/gatekeeper/internal/infrastructure/monitoring"
	"github.com/scribeflow/gatekeeper/pkg/errors"
)

// SecurityBlock denies requests from blocked sources. It runs right after
// rate limiting so blocked sources pay minimal cost: the check is an O(1)
// set membership lookup, no store calls.
func SecurityBlock(monitor *service.SecurityMonitor, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		source := c.ClientIP()

		if monitor.IsBlocked(source) {
			metrics.RecordSecurityBlock()
			decision := service.Deny(errors.ErrSecurityBlocked(source))
			c.AbortWithStatusJSON(decision.DenyStatus(), decision.Body)
			return
		}

		c.Next()
	}
}
