package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeflow/gatekeeper/internal/domain/models"
	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

// fakeUsageCounter answers monthly and daily counts by comparing the query
// window start against the fixed reference clock.
type fakeUsageCounter struct {
	now     time.Time
	monthly int64
	daily   int64
	err     error
}

func (f *fakeUsageCounter) CountSince(ctx context.Context, principal string, since time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if since.Equal(models.DayStart(f.now)) {
		return f.daily, nil
	}
	return f.monthly, nil
}

func newTestPlans(t *testing.T) *models.PlanTable {
	t.Helper()
	plans, err := models.NewPlanTable(models.DefaultPlans())
	require.NoError(t, err)
	return plans
}

func newTestTracker(t *testing.T, counter UsageCounter, now time.Time, privileged ...string) *QuotaTracker {
	t.Helper()
	return NewQuotaTracker(counter, newTestPlans(t), &QuotaTrackerConfig{
		PrivilegedPrincipals: privileged,
		Clock:                func() time.Time { return now },
	}, logger.NewNoopLogger())
}

func TestQuotaTracker_Check(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("allows under both limits with remaining counts", func(t *testing.T) {
		counter := &fakeUsageCounter{now: now, monthly: 3, daily: 1}
		tracker := newTestTracker(t, counter, now)

		decision, usage := tracker.Check(ctx, "user-1", constants.PlanFree)

		assert.True(t, decision.Allowed)
		require.NotNil(t, usage)
		assert.Equal(t, int64(2), usage.MonthlyRemaining)
		assert.Equal(t, int64(1), usage.DailyRemaining)
	})

	t.Run("denies daily before monthly headroom is spent", func(t *testing.T) {
		// Free plan: monthly 5, daily 2. Two creations today, four this
		// month: one monthly slot remains but the day is exhausted.
		counter := &fakeUsageCounter{now: now, monthly: 4, daily: 2}
		tracker := newTestTracker(t, counter, now)

		decision, _ := tracker.Check(ctx, "user-1", constants.PlanFree)

		assert.False(t, decision.Allowed)
		assert.Equal(t, http.StatusTooManyRequests, decision.StatusCode)
		assert.Equal(t, string(constants.ErrCodeDailyLimitExceeded), decision.Body.Error)
	})

	t.Run("denies monthly regardless of daily count", func(t *testing.T) {
		counter := &fakeUsageCounter{now: now, monthly: 5, daily: 0}
		tracker := newTestTracker(t, counter, now)

		decision, _ := tracker.Check(ctx, "user-1", constants.PlanFree)

		assert.False(t, decision.Allowed)
		assert.Equal(t, string(constants.ErrCodeMonthlyLimitExceeded), decision.Body.Error)
	})

	t.Run("unlimited plan always allows", func(t *testing.T) {
		counter := &fakeUsageCounter{now: now, monthly: 1_000_000, daily: 50_000}
		tracker := newTestTracker(t, counter, now)

		decision, usage := tracker.Check(ctx, "user-1", constants.PlanEnterprise)

		assert.True(t, decision.Allowed)
		assert.Nil(t, usage)
	})

	t.Run("privileged principal bypasses all counting", func(t *testing.T) {
		counter := &fakeUsageCounter{now: now, monthly: 1_000_000, daily: 50_000}
		tracker := newTestTracker(t, counter, now, "Admin@ScribeFlow.io")

		decision, _ := tracker.Check(ctx, "admin@scribeflow.io", constants.PlanFree)

		assert.True(t, decision.Allowed)
	})

	t.Run("privileged bypass skips even broken collaborators", func(t *testing.T) {
		counter := &fakeUsageCounter{now: now, err: assert.AnError}
		tracker := newTestTracker(t, counter, now, "ops@scribeflow.io")

		decision, _ := tracker.Check(ctx, "OPS@scribeflow.io", constants.PlanFree)

		assert.True(t, decision.Allowed)
	})

	t.Run("fails closed when the counter errors", func(t *testing.T) {
		counter := &fakeUsageCounter{now: now, err: assert.AnError}
		tracker := newTestTracker(t, counter, now)

		decision, _ := tracker.Check(ctx, "user-1", constants.PlanFree)

		assert.False(t, decision.Allowed)
		assert.Equal(t, http.StatusInternalServerError, decision.StatusCode)
		assert.Equal(t, string(constants.ErrCodeUsageCheckFailed), decision.Body.Error)
	})

	t.Run("unknown plan denies with invalid plan", func(t *testing.T) {
		counter := &fakeUsageCounter{now: now}
		tracker := newTestTracker(t, counter, now)

		decision, _ := tracker.Check(ctx, "user-1", "platinum")

		assert.False(t, decision.Allowed)
		assert.Equal(t, http.StatusBadRequest, decision.StatusCode)
		assert.Equal(t, string(constants.ErrCodeInvalidPlan), decision.Body.Error)
	})

	t.Run("professional plan has no daily ceiling", func(t *testing.T) {
		counter := &fakeUsageCounter{now: now, monthly: 100, daily: 100}
		tracker := newTestTracker(t, counter, now)

		decision, usage := tracker.Check(ctx, "user-1", constants.PlanProfessional)

		assert.True(t, decision.Allowed)
		require.NotNil(t, usage)
		assert.Equal(t, int64(0), usage.DailyRemaining)
	})
}

func TestWindowStarts(t *testing.T) {
	now := time.Date(2026, time.March, 15, 23, 59, 59, 0, time.UTC)

	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), models.MonthStart(now))
	assert.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), models.DayStart(now))
}
