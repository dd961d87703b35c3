package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/scribeflow/gatekeeper/internal/domain/service"
	"github.com/scribeflow/gatekeeper/internal/infrastructure/monitoring"
	"github.com/scribeflow/gatekeeper/pkg/constants"
)

// RequireFeature gates premium endpoints on the plan's capability matrix.
func RequireFeature(gate *service.FeatureGate, metrics *monitoring.Metrics, feature string) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := gate.Check(c.Request.Context(), PrincipalFrom(c), constants.PlanID(PlanFrom(c)), feature)

		if !decision.Allowed {
			metrics.RecordFeatureDenial(feature)
			c.AbortWithStatusJSON(decision.DenyStatus(), decision.Body)
			return
		}

		c.Next()
	}
}
