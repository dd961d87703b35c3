package service

import (
	"context"

	"github.com/scribeflow/gatekeeper/internal/domain/models"
	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/errors"
	"github.com/scribeflow/gatekeeper/pkg/logger"
	"github.com/scribeflow/gatekeeper/pkg/utils"
)

// FeatureGate checks a principal's plan against the capability matrix. It
// gates premium-feature endpoints and shares the quota tracker's privileged
// bypass semantics.
type FeatureGate struct {
	plans      *models.PlanTable
	privileged map[string]struct{}
	logger     logger.Logger
}

// NewFeatureGate creates a feature gate over the static plan table. The
// privileged principals are case-normalized at construction.
func NewFeatureGate(plans *models.PlanTable, privilegedPrincipals []string, log logger.Logger) *FeatureGate {
	privileged := make(map[string]struct{}, len(privilegedPrincipals))
	for _, p := range privilegedPrincipals {
		if normalized := utils.NormalizePrincipal(p); normalized != "" {
			privileged[normalized] = struct{}{}
		}
	}

	return &FeatureGate{
		plans:      plans,
		privileged: privileged,
		logger:     log.WithComponent("feature_gate"),
	}
}

// Check decides whether the plan grants the named feature. Privileged
// principals bypass the matrix entirely. An unknown plan id is a
// configuration defect and denies with INVALID_PLAN rather than defaulting,
// since silently granting or denying could both be wrong. A deny carries the
// lowest tier granting the feature as an upgrade recommendation; when no
// tier grants it, the highest tier is recommended as a fallback.
func (g *FeatureGate) Check(ctx context.Context, principal string, planID constants.PlanID, feature string) Decision {
	if _, ok := g.privileged[utils.NormalizePrincipal(principal)]; ok {
		return Allow()
	}

	plan, ok := g.plans.Lookup(planID)
	if !ok {
		g.logger.Error(ctx, "feature check against unknown plan", nil,
			logger.String("principal", principal),
			logger.String("plan_id", string(planID)),
			logger.String("feature", feature),
		)
		return Deny(errors.ErrInvalidPlan(string(planID)))
	}

	if plan.HasFeature(feature) {
		return Allow()
	}

	requiredPlan, _ := g.plans.LowestTierWith(feature)
	g.logger.Debug(ctx, "feature denied by plan",
		logger.String("principal", principal),
		logger.String("plan_id", string(planID)),
		logger.String("feature", feature),
		logger.String("required_plan", string(requiredPlan)),
	)

	return Deny(errors.ErrFeatureUnavailable(feature, requiredPlan))
}
