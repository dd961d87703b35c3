package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scribeflow/gatekeeper/internal/domain/service"
	"github.com/scribeflow/gatekeeper/internal/infrastructure/monitoring"
	"github.com/scribeflow/gatekeeper/internal/infrastructure/ratelimit"
	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/errors"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

// AdminHandler exposes the operator surface: block management, activity
// inspection, rate-limit resets, and the performance snapshot.
type AdminHandler struct {
	monitor *service.SecurityMonitor
	limiter *ratelimit.RateLimiter
	perf    *monitoring.PerformanceMonitor
	logger  logger.Logger
}

// NewAdminHandler creates the handler.
func NewAdminHandler(
	monitor *service.SecurityMonitor,
	limiter *ratelimit.RateLimiter,
	perf *monitoring.PerformanceMonitor,
	log logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		monitor: monitor,
		limiter: limiter,
		perf:    perf,
		logger:  log.WithComponent("admin_handler"),
	}
}

// BlockedSources lists currently blocked sources.
func (h *AdminHandler) BlockedSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"blocked": h.monitor.BlockedSources()})
}

// Unblock removes a source from the blocked set. Blocks never expire on
// their own; this is the only removal path.
func (h *AdminHandler) Unblock(c *gin.Context) {
	source := c.Param("source")
	if source == "" {
		appErr := errors.ErrInvalidRequest("source is required")
		c.JSON(appErr.HTTPStatus(), errors.ToErrorResponse(appErr))
		return
	}

	h.monitor.Unblock(c.Request.Context(), source)
	h.logger.Info(c.Request.Context(), "source unblocked by operator",
		logger.String("source", source))

	c.JSON(http.StatusOK, gin.H{"unblocked": source})
}

// Activities returns the most recent suspicious-activity records.
func (h *AdminHandler) Activities(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			appErr := errors.ErrInvalidRequest("limit must be a non-negative integer")
			c.JSON(appErr.HTTPStatus(), errors.ToErrorResponse(appErr))
			return
		}
		limit = parsed
	}

	c.JSON(http.StatusOK, gin.H{"activities": h.monitor.RecentActivities(limit)})
}

// Metrics returns the performance snapshot.
func (h *AdminHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.perf.GetMetrics())
}

type resetRateLimitRequest struct {
	Scope    string `json:"scope" binding:"required"`
	SourceIP string `json:"source_ip" binding:"required"`
	Email    string `json:"email"`
}

// ResetRateLimit clears a counter for one identity under one scope.
func (h *AdminHandler) ResetRateLimit(c *gin.Context) {
	var req resetRateLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.ErrInvalidRequest(err.Error())
		c.JSON(appErr.HTTPStatus(), errors.ToErrorResponse(appErr))
		return
	}

	err := h.limiter.Reset(c.Request.Context(), ratelimit.Request{
		SourceIP: req.SourceIP,
		Email:    req.Email,
	}, constants.RateLimitScope(req.Scope))
	if err != nil {
		h.logger.Error(c.Request.Context(), "rate limit reset failed", err,
			logger.String("scope", req.Scope))
		c.JSON(http.StatusInternalServerError, errors.ToGenericErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"reset": req.Scope})
}
