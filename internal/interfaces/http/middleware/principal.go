package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/utils"
)

const (
	// HeaderPrincipal carries the authenticated principal, set by the
	// upstream auth gateway
	HeaderPrincipal = "X-User-Email"

	// HeaderPlan carries the principal's plan id
	HeaderPlan = "X-User-Plan"
)

// Principal resolves the caller identity and plan from the trusted gateway
// headers and stashes them in the gin context for the gates downstream.
// Identity is case-normalized once here so every gate compares equals.
func Principal() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := utils.NormalizePrincipal(c.GetHeader(HeaderPrincipal))
		plan := utils.NormalizePrincipal(c.GetHeader(HeaderPlan))

		c.Set(string(constants.ContextKeyPrincipal), principal)
		c.Set(string(constants.ContextKeyPlanID), plan)

		c.Next()
	}
}

// PrincipalFrom returns the resolved principal for the request.
func PrincipalFrom(c *gin.Context) string {
	return c.GetString(string(constants.ContextKeyPrincipal))
}

// PlanFrom returns the resolved plan id for the request.
func PlanFrom(c *gin.Context) string {
	return c.GetString(string(constants.ContextKeyPlanID))
}
