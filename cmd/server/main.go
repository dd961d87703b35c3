package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scribeflow/gatekeeper/internal/config"
	"github.com/scribeflow/gatekeeper/internal/domain/models"
	"github.com/scribeflow/gatekeeper/internal/domain/service"
	"github.com/scribeflow/gatekeeper/internal/infrastructure/monitoring"
	"github.com/scribeflow/gatekeeper/internal/infrastructure/persistence/postgres"
	redisconn "github.com/scribeflow/gatekeeper/internal/infrastructure/persistence/redis"
	"github.com/scribeflow/gatekeeper/internal/infrastructure/ratelimit"
	"github.com/scribeflow/gatekeeper/internal/interfaces/http/handlers"
	"github.com/scribeflow/gatekeeper/internal/interfaces/http/router"
	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

func main() {
	startupLogger, _ := monitoring.NewZapLogger(&config.LogConfig{Level: "info", Format: "json"})

	cfg, err := config.LoadConfig(startupLogger)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database: transcript persistence and the quota usage counter.
	db, err := postgres.NewDBConnection(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to connect to database", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		appLogger.Fatal(ctx, "failed to migrate schema", err)
	}

	// Counter store: Redis when configured, in-process otherwise.
	var counterStore service.CounterStore
	healthCheckers := map[string]handlers.HealthChecker{"database": db}

	if cfg.Redis.Enabled {
		conn, err := redisconn.NewConnection(ctx, &cfg.Redis, appLogger)
		if err != nil {
			appLogger.Fatal(ctx, "failed to connect to redis", err)
		}
		defer conn.Close()

		store, err := ratelimit.NewRedisCounterStore(conn.Client(), appLogger)
		if err != nil {
			appLogger.Fatal(ctx, "failed to create counter store", err)
		}
		counterStore = store
		healthCheckers["redis"] = conn
	} else {
		appLogger.Warn(ctx, "redis disabled, using in-process rate limit counters")
		counterStore = ratelimit.NewMemoryCounterStore(time.Minute)
	}

	metrics := monitoring.NewMetrics()

	plans, err := buildPlanTable(cfg)
	if err != nil {
		appLogger.Fatal(ctx, "invalid plan configuration", err)
	}

	limiter := ratelimit.NewRateLimiter(counterStore, buildPolicies(cfg), appLogger)
	securityMonitor := service.NewSecurityMonitor(&service.SecurityMonitorConfig{
		Capacity:  cfg.Security.ActivityLogSize,
		Threshold: cfg.Security.BlockThreshold,
		Window:    cfg.Security.BlockWindow(),
	}, appLogger)

	transcriptRepo := postgres.NewTranscriptRepository(db.DB(), appLogger)

	quotaTracker := service.NewQuotaTracker(transcriptRepo, plans, &service.QuotaTrackerConfig{
		PrivilegedPrincipals: cfg.Quota.PrivilegedPrincipals,
		QueryTimeout:         cfg.Quota.QueryTimeout(),
	}, appLogger)
	featureGate := service.NewFeatureGate(plans, cfg.Quota.PrivilegedPrincipals, appLogger)

	perf := monitoring.NewPerformanceMonitor(&monitoring.PerformanceMonitorConfig{
		MemorySampleInterval: time.Duration(cfg.Monitoring.MemorySampleSeconds) * time.Second,
		CPUSampleInterval:    time.Duration(cfg.Monitoring.CPUSampleSeconds) * time.Second,
	}, appLogger)
	perf.Start(ctx)
	defer perf.Stop()

	srv := router.NewRouter(router.Deps{
		Config:            cfg,
		Logger:            appLogger,
		Limiter:           limiter,
		SecurityMonitor:   securityMonitor,
		QuotaTracker:      quotaTracker,
		FeatureGate:       featureGate,
		Perf:              perf,
		Metrics:           metrics,
		TranscriptHandler: handlers.NewTranscriptHandler(transcriptRepo, securityMonitor, appLogger),
		AdminHandler:      handlers.NewAdminHandler(securityMonitor, limiter, perf, appLogger),
		HealthHandler:     handlers.NewHealthHandler(healthCheckers),
	})

	if err := config.WatchConfig(appLogger, func(fresh *config.Config) {
		// Only log-level class settings take effect without restart today;
		// the reload hook exists so operators see drift immediately.
		appLogger.Info(ctx, "configuration changed on disk, restart to apply structural changes")
		_ = fresh
	}); err != nil {
		appLogger.Warn(ctx, "config watch unavailable", logger.Any("error", err))
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return srv.Start()
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		appLogger.Error(context.Background(), "server exited with error", err)
		os.Exit(1)
	}

	appLogger.Info(context.Background(), "server stopped")
}

// buildPolicies merges configured overrides onto the default per-scope
// policies, preserving the default key and skip functions.
func buildPolicies(cfg *config.Config) []ratelimit.Policy {
	policies := ratelimit.DefaultPolicies()

	overrides := make(map[constants.RateLimitScope]config.PolicyConfig, len(cfg.RateLimit.Policies))
	for _, p := range cfg.RateLimit.Policies {
		overrides[constants.RateLimitScope(p.Scope)] = p
	}

	for i := range policies {
		if o, ok := overrides[policies[i].Scope]; ok {
			policies[i].Window = o.Window()
			policies[i].Max = o.Max
		}
	}

	return policies
}

// buildPlanTable converts configured plans into the immutable plan table,
// falling back to the built-in tiers when none are configured.
func buildPlanTable(cfg *config.Config) (*models.PlanTable, error) {
	if len(cfg.Plans) == 0 {
		return models.NewPlanTable(models.DefaultPlans())
	}

	plans := make([]*models.Plan, 0, len(cfg.Plans))
	for id, pc := range cfg.Plans {
		features := make(map[string]bool, len(pc.Features))
		for _, f := range pc.Features {
			features[f] = true
		}
		plans = append(plans, &models.Plan{
			ID:           constants.PlanID(id),
			MonthlyLimit: pc.MonthlyLimit,
			DailyLimit:   pc.DailyLimit,
			Features:     features,
		})
	}

	return models.NewPlanTable(plans)
}
