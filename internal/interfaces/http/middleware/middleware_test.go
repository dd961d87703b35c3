package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeflow/gatekeeper/internal/domain/models"
	"github.com/scribeflow/gatekeeper/internal/domain/service"
	"github.com/scribeflow/gatekeeper/internal/infrastructure/monitoring"
	"github.com/scribeflow/gatekeeper/internal/infrastructure/ratelimit"
	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/errors"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeCounter returns fixed monthly/daily counts for every principal.
type fakeCounter struct {
	now     time.Time
	monthly int64
	daily   int64
}

func (f *fakeCounter) CountSince(ctx context.Context, principal string, since time.Time) (int64, error) {
	if since.Equal(models.DayStart(f.now)) {
		return f.daily, nil
	}
	return f.monthly, nil
}

func newTestMetrics() *monitoring.Metrics {
	return monitoring.NewMetricsWith(prometheus.NewRegistry())
}

func newPlanTable(t *testing.T) *models.PlanTable {
	t.Helper()
	plans, err := models.NewPlanTable(models.DefaultPlans())
	require.NoError(t, err)
	return plans
}

func performRequest(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.9:42613"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_DeniesAndSetsHeaders(t *testing.T) {
	limiter := ratelimit.NewRateLimiter(
		ratelimit.NewMemoryCounterStore(0),
		[]ratelimit.Policy{{Scope: constants.ScopeGeneral, Window: time.Minute, Max: 2}},
		logger.NewNoopLogger(),
	)
	monitor := service.NewSecurityMonitor(nil, logger.NewNoopLogger())
	metrics := newTestMetrics()

	r := gin.New()
	r.Use(RateLimit(limiter, monitor, metrics, logger.NewNoopLogger(), constants.ScopeGeneral))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get(constants.HeaderRateLimitLimit))
	assert.Equal(t, "1", w.Header().Get(constants.HeaderRateLimitRemaining))

	performRequest(r, http.MethodGet, "/ping", nil)

	w = performRequest(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get(constants.HeaderRateLimitRemaining))
	assert.Contains(t, w.Body.String(), string(constants.ErrCodeRateLimited))

	// The denial was recorded as suspicious activity for the source.
	activities := monitor.RecentActivities(0)
	require.NotEmpty(t, activities)
	assert.Equal(t, "203.0.113.9", activities[0].Source)
	assert.Equal(t, constants.ActivityRateLimitHit, activities[0].Kind)
}

func TestSecurityBlockMiddleware(t *testing.T) {
	monitor := service.NewSecurityMonitor(&service.SecurityMonitorConfig{Threshold: 1}, logger.NewNoopLogger())
	monitor.RecordActivity(context.Background(), "203.0.113.9", constants.ActivityInvalidPayload, "garbled body")

	r := gin.New()
	r.Use(SecurityBlock(monitor, newTestMetrics()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), string(constants.ErrCodeSecurityBlocked))

	monitor.Unblock(context.Background(), "203.0.113.9")
	w = performRequest(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQuotaMiddleware_DeniesOverLimit(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	tracker := service.NewQuotaTracker(
		&fakeCounter{now: now, monthly: 5, daily: 0},
		newPlanTable(t),
		&service.QuotaTrackerConfig{Clock: func() time.Time { return now }},
		logger.NewNoopLogger(),
	)
	monitor := service.NewSecurityMonitor(nil, logger.NewNoopLogger())

	r := gin.New()
	r.Use(Principal(), Quota(tracker, monitor, newTestMetrics()))
	r.POST("/transcripts", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := performRequest(r, http.MethodPost, "/transcripts", map[string]string{
		HeaderPrincipal: "user@example.com",
		HeaderPlan:      "free",
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), string(constants.ErrCodeMonthlyLimitExceeded))

	// The denial registers as quota probing against the source.
	activities := monitor.RecentActivities(0)
	require.NotEmpty(t, activities)
	assert.Equal(t, "203.0.113.9", activities[0].Source)
	assert.Equal(t, constants.ActivityQuotaProbe, activities[0].Kind)
}

func TestQuotaMiddleware_AttachesUsageOnAllow(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	tracker := service.NewQuotaTracker(
		&fakeCounter{now: now, monthly: 2, daily: 1},
		newPlanTable(t),
		&service.QuotaTrackerConfig{Clock: func() time.Time { return now }},
		logger.NewNoopLogger(),
	)

	var seen *models.UsageSnapshot
	r := gin.New()
	r.Use(Principal(), Quota(tracker, service.NewSecurityMonitor(nil, logger.NewNoopLogger()), newTestMetrics()))
	r.POST("/transcripts", func(c *gin.Context) {
		seen, _ = UsageFrom(c)
		c.Status(http.StatusCreated)
	})

	w := performRequest(r, http.MethodPost, "/transcripts", map[string]string{
		HeaderPrincipal: "user@example.com",
		HeaderPlan:      "free",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, int64(2), seen.MonthlyUsed)
	assert.Equal(t, int64(3), seen.MonthlyRemaining)
}

func TestRequireFeatureMiddleware(t *testing.T) {
	gate := service.NewFeatureGate(newPlanTable(t), nil, logger.NewNoopLogger())

	r := gin.New()
	r.Use(Principal(), RequireFeature(gate, newTestMetrics(), constants.FeatureAdvancedAnalytics))
	r.POST("/analyze", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(r, http.MethodPost, "/analyze", map[string]string{
		HeaderPrincipal: "user@example.com",
		HeaderPlan:      "starter",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), string(constants.ErrCodeFeatureUnavailable))
	assert.Contains(t, w.Body.String(), "professional")

	w = performRequest(r, http.MethodPost, "/analyze", map[string]string{
		HeaderPrincipal: "user@example.com",
		HeaderPlan:      "professional",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestObservabilityMiddleware_RecordsDeniedRequests(t *testing.T) {
	perf := monitoring.NewPerformanceMonitor(nil, logger.NewNoopLogger())
	monitor := service.NewSecurityMonitor(&service.SecurityMonitorConfig{Threshold: 1}, logger.NewNoopLogger())
	monitor.RecordActivity(context.Background(), "203.0.113.9", constants.ActivityInvalidPayload, "garbled body")

	r := gin.New()
	r.Use(Observability(perf, newTestMetrics()), SecurityBlock(monitor, newTestMetrics()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The deny still counts as a completed request.
	assert.Equal(t, int64(1), perf.GetMetrics().Requests)
}

func TestObservabilityMiddleware_RecordsPanickedRequests(t *testing.T) {
	perf := monitoring.NewPerformanceMonitor(nil, logger.NewNoopLogger())

	r := gin.New()
	r.Use(Observability(perf, newTestMetrics()), Recovery(logger.NewNoopLogger()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := performRequest(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// A panicked request is still a completed request, counted as an error.
	snapshot := perf.GetMetrics()
	assert.Equal(t, int64(1), snapshot.Requests)
	assert.Equal(t, int64(1), snapshot.Errors)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(r, http.MethodGet, "/ping", nil)
	assert.NotEmpty(t, w.Header().Get(constants.HeaderRequestID))

	w = performRequest(r, http.MethodGet, "/ping", map[string]string{
		constants.HeaderRequestID: "fixed-id",
	})
	assert.Equal(t, "fixed-id", w.Header().Get(constants.HeaderRequestID))
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(logger.NewNoopLogger()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := performRequest(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp errors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(constants.ErrCodeServerError), resp.Error)
}
