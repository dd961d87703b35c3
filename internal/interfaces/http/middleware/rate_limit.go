package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scribeflow/gatekeeper/internal/domain/service"
	"github.com/scribeflow/gatekeeper/internal/infrastructure/monitoring"
	"github.com/scribeflow/gatekeeper/internal/infrastructure/ratelimit"
	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/errors"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

// RateLimit gates requests through the scope's fixed-window policy. It is
// the first gate: everything below it is shielded from volumetric abuse.
// Denials are themselves suspicious activity and feed the security monitor.
func RateLimit(
	limiter *ratelimit.RateLimiter,
	monitor *service.SecurityMonitor,
	metrics *monitoring.Metrics,
	log logger.Logger,
	scope constants.RateLimitScope,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := ratelimit.Request{
			Path:     c.Request.URL.Path,
			SourceIP: c.ClientIP(),
			Email:    PrincipalFrom(c),
		}

		result := limiter.Check(c.Request.Context(), req, scope)

		c.Header(constants.HeaderRateLimitLimit, strconv.FormatInt(result.Limit, 10))
		c.Header(constants.HeaderRateLimitRemaining, strconv.FormatInt(result.Remaining, 10))
		if !result.ResetAt.IsZero() {
			c.Header(constants.HeaderRateLimitReset, strconv.FormatInt(result.ResetAt.Unix(), 10))
		}

		if !result.Allowed {
			metrics.RecordRateLimitHit(scope)
			monitor.RecordActivity(c.Request.Context(), req.SourceIP,
				constants.ActivityRateLimitHit, string(scope))
			log.Warn(c.Request.Context(), "rate limit exceeded",
				logger.String("scope", string(scope)),
				logger.String("source_ip", req.SourceIP),
			)

			decision := service.Deny(errors.ErrRateLimited(scope, int(result.Limit), result.ResetAt))
			c.AbortWithStatusJSON(decision.DenyStatus(), decision.Body)
			return
		}

		c.Next()
	}
}
