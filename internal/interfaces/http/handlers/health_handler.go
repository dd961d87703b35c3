package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker is one named dependency probe.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and dependency readiness.
type HealthHandler struct {
	checkers map[string]HealthChecker
}

// NewHealthHandler creates the handler over named dependency probes.
func NewHealthHandler(checkers map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checkers: checkers}
}

// Live always reports ok while the process serves requests.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready pings each dependency with a short deadline and reports per-component
// status; any failure degrades the response to 503.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(h.checkers))

	for name, checker := range h.checkers {
		if err := checker.Ping(ctx); err != nil {
			components[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	c.JSON(status, gin.H{"status": http.StatusText(status), "components": components})
}
