// Package router assembles the gin engine, the admission pipeline, and the
// HTTP server lifecycle.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scribeflow/gatekeeper/internal/config"
	"github.com/scribeflow/gatekeeper/internal/domain/service"
	"github.com/scribeflow/gatekeeper/internal/infrastructure/monitoring"
	"github.com/scribeflow/gatekeeper/internal/infrastructure/ratelimit"
	"github.com/scribeflow/gatekeeper/internal/interfaces/http/handlers"
	"github.com/scribeflow/gatekeeper/internal/interfaces/http/middleware"
	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/errors"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

// Deps carries everything the router wires into the pipeline.
type Deps struct {
	Config            *config.Config
	Logger            logger.Logger
	Limiter           *ratelimit.RateLimiter
	SecurityMonitor   *service.SecurityMonitor
	QuotaTracker      *service.QuotaTracker
	FeatureGate       *service.FeatureGate
	Perf              *monitoring.PerformanceMonitor
	Metrics           *monitoring.Metrics
	TranscriptHandler *handlers.TranscriptHandler
	AdminHandler      *handlers.AdminHandler
	HealthHandler     *handlers.HealthHandler
}

// Router owns the gin engine and the HTTP server.
type Router struct {
	engine *gin.Engine
	deps   Deps
	server *http.Server
}

// NewRouter builds the engine and registers all routes.
func NewRouter(deps Deps) *Router {
	gin.SetMode(deps.Config.Server.Mode)
	engine := gin.New()

	r := &Router{engine: engine, deps: deps}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	d := r.deps

	// Observability wraps everything, recovery included, so the timing
	// covers the whole chain and lands even when a gate denies the request
	// or a handler panics.
	r.engine.Use(
		middleware.Observability(d.Perf, d.Metrics),
		middleware.Recovery(d.Logger),
		middleware.RequestID(),
		middleware.Principal(),
	)

	allowOrigins := d.Config.Server.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}
	r.engine.Use(cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", constants.HeaderRequestID, middleware.HeaderPrincipal, middleware.HeaderPlan},
		ExposeHeaders: []string{constants.HeaderRequestID, constants.HeaderRateLimitLimit, constants.HeaderRateLimitRemaining, constants.HeaderRateLimitReset},
		MaxAge:        12 * time.Hour,
	}))

	r.engine.GET("/health/live", d.HealthHandler.Live)
	r.engine.GET("/health/ready", d.HealthHandler.Ready)

	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if d.Config.Server.EnablePprof {
		pprof.Register(r.engine)
	}

	rateLimit := func(scope constants.RateLimitScope) gin.HandlerFunc {
		return middleware.RateLimit(d.Limiter, d.SecurityMonitor, d.Metrics, d.Logger, scope)
	}
	blocked := middleware.SecurityBlock(d.SecurityMonitor, d.Metrics)

	v1 := r.engine.Group("/api/v1")
	v1.Use(rateLimit(constants.ScopeGeneral), blocked)
	{
		transcripts := v1.Group("/transcripts")
		{
			transcripts.POST("",
				rateLimit(constants.ScopeUpload),
				middleware.Quota(d.QuotaTracker, d.SecurityMonitor, d.Metrics),
				d.TranscriptHandler.Create,
			)
			transcripts.GET("/:id", d.TranscriptHandler.Get)
			transcripts.POST("/:id/analyze",
				rateLimit(constants.ScopeAnalysis),
				middleware.RequireFeature(d.FeatureGate, d.Metrics, constants.FeatureAdvancedAnalytics),
				d.TranscriptHandler.Analyze,
			)
		}

		admin := v1.Group("/admin")
		{
			admin.GET("/blocked", d.AdminHandler.BlockedSources)
			admin.DELETE("/blocked/:source", d.AdminHandler.Unblock)
			admin.GET("/activities", d.AdminHandler.Activities)
			admin.GET("/performance", d.AdminHandler.Metrics)
			admin.POST("/rate-limits/reset", d.AdminHandler.ResetRateLimit)
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		appErr := errors.ErrNotFound("route")
		c.JSON(appErr.HTTPStatus(), errors.ToErrorResponse(appErr))
	})
}

// Start runs the HTTP server until it is shut down.
func (r *Router) Start() error {
	cfg := r.deps.Config.Server
	r.server = &http.Server{
		Addr:           cfg.Address(),
		Handler:        r.engine,
		ReadTimeout:    time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	r.deps.Logger.Info(context.Background(), "starting http server",
		logger.String("address", cfg.Address()))

	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.deps.Logger.Info(ctx, "stopping http server")
	return r.server.Shutdown(ctx)
}

// Engine exposes the gin engine for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
