package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

func TestFeatureGate_Check(t *testing.T) {
	ctx := context.Background()
	plans := newTestPlans(t)

	t.Run("allows feature granted by plan", func(t *testing.T) {
		gate := NewFeatureGate(plans, nil, logger.NewNoopLogger())

		decision := gate.Check(ctx, "user-1", constants.PlanStarter, constants.FeatureBasicAnalytics)

		assert.True(t, decision.Allowed)
	})

	t.Run("denies with lowest tier granting the feature", func(t *testing.T) {
		gate := NewFeatureGate(plans, nil, logger.NewNoopLogger())

		decision := gate.Check(ctx, "user-1", constants.PlanStarter, constants.FeatureAdvancedAnalytics)

		assert.False(t, decision.Allowed)
		assert.Equal(t, http.StatusForbidden, decision.StatusCode)
		assert.Equal(t, string(constants.ErrCodeFeatureUnavailable), decision.Body.Error)
		assert.Equal(t, string(constants.PlanProfessional), decision.Body.Metadata["required_plan"])
	})

	t.Run("recommends highest tier when no plan grants the feature", func(t *testing.T) {
		gate := NewFeatureGate(plans, nil, logger.NewNoopLogger())

		decision := gate.Check(ctx, "user-1", constants.PlanFree, "timeTravel")

		assert.False(t, decision.Allowed)
		assert.Equal(t, string(constants.PlanEnterprise), decision.Body.Metadata["required_plan"])
	})

	t.Run("privileged principal bypasses the matrix", func(t *testing.T) {
		gate := NewFeatureGate(plans, []string{"Admin@ScribeFlow.io"}, logger.NewNoopLogger())

		decision := gate.Check(ctx, "admin@scribeflow.io", constants.PlanFree, constants.FeatureAdvancedAnalytics)

		assert.True(t, decision.Allowed)
	})

	t.Run("unknown plan denies with invalid plan", func(t *testing.T) {
		gate := NewFeatureGate(plans, nil, logger.NewNoopLogger())

		decision := gate.Check(ctx, "user-1", "platinum", constants.FeatureExport)

		assert.False(t, decision.Allowed)
		assert.Equal(t, http.StatusBadRequest, decision.StatusCode)
		assert.Equal(t, string(constants.ErrCodeInvalidPlan), decision.Body.Error)
	})
}
