// Package models defines the domain entities of the Gatekeeper admission core.
package models

import (
	"fmt"

	"github.com/scribeflow/gatekeeper/pkg/constants"
)

// Plan is a subscription tier defining quota ceilings and a feature
// capability map. Plans are immutable after load; lookups are per request.
type Plan struct {
	// ID is the plan identifier
	ID constants.PlanID

	// MonthlyLimit caps transcript creations per calendar month. Zero means
	// unlimited, which also disables the daily check.
	MonthlyLimit int64

	// DailyLimit caps transcript creations per calendar day. Zero means no
	// daily ceiling.
	DailyLimit int64

	// Features maps feature name to entitlement
	Features map[string]bool
}

// Unlimited reports whether the plan has no usage ceiling at any granularity.
func (p *Plan) Unlimited() bool {
	return p.MonthlyLimit == 0
}

// HasFeature reports whether the plan grants the named feature. Absent
// entries are treated as false.
func (p *Plan) HasFeature(name string) bool {
	return p.Features[name]
}

// PlanTable is the static plan lookup table, loaded once at process start
// and read-only thereafter.
type PlanTable struct {
	plans map[constants.PlanID]*Plan
}

// NewPlanTable builds a table from the given plans. Every tier in
// constants.TierOrder must be present.
func NewPlanTable(plans []*Plan) (*PlanTable, error) {
	byID := make(map[constants.PlanID]*Plan, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
	}

	for _, tier := range constants.TierOrder {
		if _, ok := byID[tier]; !ok {
			return nil, fmt.Errorf("plan table missing tier %q", tier)
		}
	}

	return &PlanTable{plans: byID}, nil
}

// Lookup returns the plan for the given id, or false for unknown ids. An
// unknown id is a configuration defect handled by the caller; it is never
// defaulted here.
func (t *PlanTable) Lookup(id constants.PlanID) (*Plan, bool) {
	p, ok := t.plans[id]
	return p, ok
}

// LowestTierWith returns the lowest-cost plan granting the named feature. If
// no plan grants it, the highest tier is returned as a fallback
// recommendation and the second result is false.
func (t *PlanTable) LowestTierWith(feature string) (constants.PlanID, bool) {
	for _, tier := range constants.TierOrder {
		if p, ok := t.plans[tier]; ok && p.HasFeature(feature) {
			return tier, true
		}
	}
	return constants.TierOrder[len(constants.TierOrder)-1], false
}

// DefaultPlans returns the built-in plan matrix used when configuration does
// not override it.
func DefaultPlans() []*Plan {
	return []*Plan{
		{
			ID:           constants.PlanFree,
			MonthlyLimit: 5,
			DailyLimit:   2,
			Features:     map[string]bool{},
		},
		{
			ID:           constants.PlanStarter,
			MonthlyLimit: 50,
			DailyLimit:   10,
			Features: map[string]bool{
				constants.FeatureBasicAnalytics: true,
			},
		},
		{
			ID:           constants.PlanProfessional,
			MonthlyLimit: 500,
			DailyLimit:   0,
			Features: map[string]bool{
				constants.FeatureBasicAnalytics:    true,
				constants.FeatureAdvancedAnalytics: true,
				constants.FeatureExport:            true,
			},
		},
		{
			ID:           constants.PlanEnterprise,
			MonthlyLimit: 0,
			DailyLimit:   0,
			Features: map[string]bool{
				constants.FeatureBasicAnalytics:    true,
				constants.FeatureAdvancedAnalytics: true,
				constants.FeatureExport:            true,
				constants.FeaturePrioritySupport:   true,
			},
		},
	}
}
