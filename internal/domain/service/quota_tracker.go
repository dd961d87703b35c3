package service

import (
	"context"
	"time"

	"github.com/scribeflow/gatekeeper/internal/domain/models"
	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/errors"
	"github.com/scribeflow/gatekeeper/pkg/logger"
	"github.com/scribeflow/gatekeeper/pkg/utils"
)

// QuotaTracker computes a principal's rolling monthly and daily usage against
// its plan's limits. It gates resource-creation endpoints only.
//
// The check is read-then-decide with no reservation step: two concurrent
// requests can both read a count below the limit and both be allowed, so the
// true count may exceed the limit by the degree of concurrency. This is an
// accepted trade-off for a plan-nudge mechanism, not a billing ledger.
type QuotaTracker struct {
	counter    UsageCounter
	plans      *models.PlanTable
	privileged map[string]struct{}
	timeout    time.Duration
	clock      func() time.Time
	logger     logger.Logger
}

// QuotaTrackerConfig holds quota tracker configuration.
type QuotaTrackerConfig struct {
	// PrivilegedPrincipals are exempt from all quota enforcement. Entries
	// are case-normalized before comparison.
	PrivilegedPrincipals []string

	// QueryTimeout bounds a single usage-count query
	QueryTimeout time.Duration

	// Clock overrides the reference clock. Nil means time.Now.
	Clock func() time.Time
}

// NewQuotaTracker creates a quota tracker over the given usage-count
// collaborator and plan table.
func NewQuotaTracker(counter UsageCounter, plans *models.PlanTable, cfg *QuotaTrackerConfig, log logger.Logger) *QuotaTracker {
	if cfg == nil {
		cfg = &QuotaTrackerConfig{}
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = constants.UsageQueryTimeout
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	privileged := make(map[string]struct{}, len(cfg.PrivilegedPrincipals))
	for _, p := range cfg.PrivilegedPrincipals {
		if normalized := utils.NormalizePrincipal(p); normalized != "" {
			privileged[normalized] = struct{}{}
		}
	}

	return &QuotaTracker{
		counter:    counter,
		plans:      plans,
		privileged: privileged,
		timeout:    cfg.QueryTimeout,
		clock:      clock,
		logger:     log.WithComponent("quota_tracker"),
	}
}

// Check evaluates the principal's usage against the plan's ceilings.
//
// Privileged principals are always allowed, skipping all counting. Plans with
// a zero monthly limit are unlimited and skip the daily check as well.
// Otherwise the monthly ceiling is evaluated before the daily one, and the
// daily ceiling only when the plan defines one. If the counting collaborator
// errors the check fails closed with USAGE_CHECK_FAILED: this gate protects
// monetized limits, so under-limiting on error is the safer default.
//
// On allow the returned snapshot carries remaining monthly and daily counts
// for caller display; it is nil for privileged and unlimited paths.
func (q *QuotaTracker) Check(ctx context.Context, principal string, planID constants.PlanID) (Decision, *models.UsageSnapshot) {
	if q.IsPrivileged(principal) {
		return Allow(), nil
	}

	plan, ok := q.plans.Lookup(planID)
	if !ok {
		q.logger.Error(ctx, "quota check against unknown plan", nil,
			logger.String("principal", principal),
			logger.String("plan_id", string(planID)),
		)
		return Deny(errors.ErrInvalidPlan(string(planID))), nil
	}

	if plan.Unlimited() {
		return Allow(), nil
	}

	now := q.clock()
	monthlyUsed, err := q.countSince(ctx, principal, models.MonthStart(now))
	if err != nil {
		q.logger.Error(ctx, "monthly usage count failed, denying", err,
			logger.String("principal", principal),
		)
		return Deny(errors.ErrUsageCheckFailed()), nil
	}

	dailyUsed, err := q.countSince(ctx, principal, models.DayStart(now))
	if err != nil {
		q.logger.Error(ctx, "daily usage count failed, denying", err,
			logger.String("principal", principal),
		)
		return Deny(errors.ErrUsageCheckFailed()), nil
	}

	snapshot := buildSnapshot(plan, monthlyUsed, dailyUsed)

	if monthlyUsed >= plan.MonthlyLimit {
		return Deny(withUsage(errors.ErrMonthlyLimitExceeded(monthlyUsed, plan.MonthlyLimit), snapshot)), snapshot
	}

	if plan.DailyLimit > 0 && dailyUsed >= plan.DailyLimit {
		return Deny(withUsage(errors.ErrDailyLimitExceeded(dailyUsed, plan.DailyLimit), snapshot)), snapshot
	}

	return Allow(), snapshot
}

// IsPrivileged reports whether the principal is on the configured exemption
// list, after case normalization.
func (q *QuotaTracker) IsPrivileged(principal string) bool {
	_, ok := q.privileged[utils.NormalizePrincipal(principal)]
	return ok
}

func (q *QuotaTracker) countSince(ctx context.Context, principal string, since time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	return q.counter.CountSince(ctx, principal, since)
}

func buildSnapshot(plan *models.Plan, monthlyUsed, dailyUsed int64) *models.UsageSnapshot {
	snapshot := &models.UsageSnapshot{
		MonthlyUsed:  monthlyUsed,
		MonthlyLimit: plan.MonthlyLimit,
		DailyUsed:    dailyUsed,
		DailyLimit:   plan.DailyLimit,
	}
	if remaining := plan.MonthlyLimit - monthlyUsed; remaining > 0 {
		snapshot.MonthlyRemaining = remaining
	}
	if plan.DailyLimit > 0 {
		if remaining := plan.DailyLimit - dailyUsed; remaining > 0 {
			snapshot.DailyRemaining = remaining
		}
	}
	return snapshot
}

func withUsage(err *errors.AppError, snapshot *models.UsageSnapshot) *errors.AppError {
	return err.WithMetadata("usage", snapshot)
}
