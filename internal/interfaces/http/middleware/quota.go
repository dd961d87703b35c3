package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/scribeflow/gatekeeper/internal/domain/models"
	"github.com/scribeflow/gatekeeper/internal/domain/service"
	"github.com/scribeflow/gatekeeper/internal/infrastructure/monitoring"
	"github.com/scribeflow/gatekeeper/pkg/constants"
)

// contextKeyUsage carries the usage snapshot from the quota gate to the
// handler for caller display.
const contextKeyUsage = "usage_snapshot"

// Quota gates resource-creation endpoints on the principal's plan limits.
// An allowed request carries its usage snapshot forward so the handler can
// echo remaining counts. Denials are recorded as quota probing so a source
// hammering an exhausted quota eventually trips a block.
func Quota(tracker *service.QuotaTracker, monitor *service.SecurityMonitor, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, usage := tracker.Check(c.Request.Context(), PrincipalFrom(c), constants.PlanID(PlanFrom(c)))

		if !decision.Allowed {
			if decision.Body != nil {
				metrics.RecordQuotaDenial(decision.Body.Error)
				monitor.RecordActivity(c.Request.Context(), c.ClientIP(),
					constants.ActivityQuotaProbe, decision.Body.Error)
			}
			c.AbortWithStatusJSON(decision.DenyStatus(), decision.Body)
			return
		}

		if usage != nil {
			c.Set(contextKeyUsage, usage)
		}

		c.Next()
	}
}

// UsageFrom returns the usage snapshot attached by the quota gate, if any.
func UsageFrom(c *gin.Context) (*models.UsageSnapshot, bool) {
	v, ok := c.Get(contextKeyUsage)
	if !ok {
		return nil, false
	}
	usage, ok := v.(*models.UsageSnapshot)
	return usage, ok
}
