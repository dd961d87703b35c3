// Package constants defines system-wide constants for the ScribeFlow Gatekeeper service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Rate Limit Scope Constants
// ================================================================================

// RateLimitScope identifies the endpoint class a rate-limit policy applies to.
// Each scope carries its own window and ceiling because abuse tolerance differs
// by the cost of the underlying operation.
type RateLimitScope string

const (
	// ScopeGeneral covers ordinary API traffic
	ScopeGeneral RateLimitScope = "general"

	// ScopeAuth covers authentication attempts, keyed by email+IP
	ScopeAuth RateLimitScope = "auth"

	// ScopeUpload covers transcript file uploads
	ScopeUpload RateLimitScope = "upload"

	// ScopeAnalysis covers AI analysis invocations
	ScopeAnalysis RateLimitScope = "analysis"

	// ScopePayment covers payment and checkout operations
	ScopePayment RateLimitScope = "payment"
)

// ================================================================================
// Plan Tier Constants
// ================================================================================

// PlanID identifies a subscription plan tier.
type PlanID string

const (
	// PlanFree is the entry tier with tight quotas
	PlanFree PlanID = "free"

	// PlanStarter is the first paid tier
	PlanStarter PlanID = "starter"

	// PlanProfessional unlocks advanced analysis features
	PlanProfessional PlanID = "professional"

	// PlanEnterprise has no usage ceilings
	PlanEnterprise PlanID = "enterprise"
)

// TierOrder lists plan identifiers from lowest to highest cost. FeatureGate
// uses this ordering to recommend the cheapest plan granting a feature.
var TierOrder = []PlanID{PlanFree, PlanStarter, PlanProfessional, PlanEnterprise}

// ================================================================================
// Feature Name Constants
// ================================================================================

const (
	// FeatureBasicAnalytics is the baseline transcript analytics capability
	FeatureBasicAnalytics = "basicAnalytics"

	// FeatureAdvancedAnalytics covers sentiment and topic extraction
	FeatureAdvancedAnalytics = "advancedAnalytics"

	// FeatureExport covers transcript and report export
	FeatureExport = "export"

	// FeaturePrioritySupport marks priority support entitlement
	FeaturePrioritySupport = "prioritySupport"
)

// ================================================================================
// Suspicious Activity Constants
// ================================================================================

// ActivityKind classifies a suspicious event recorded by the security monitor.
type ActivityKind string

const (
	// ActivityRateLimitHit is a denied request at a rate-limit gate
	ActivityRateLimitHit ActivityKind = "rate_limit_hit"

	// ActivityInvalidPayload is a malformed or rejected request body
	ActivityInvalidPayload ActivityKind = "invalid_payload"

	// ActivityQuotaProbe is repeated probing against exhausted quotas
	ActivityQuotaProbe ActivityKind = "quota_probe"
)

// ================================================================================
// Admission Control Defaults
// ================================================================================

const (
	// BlockThreshold is the number of suspicious events within BlockWindow
	// that trips an automatic source block
	BlockThreshold = 10

	// BlockWindow is the trailing window evaluated on each recorded event
	BlockWindow = 15 * time.Minute

	// ActivityLogCapacity bounds the global suspicious-activity sequence
	ActivityLogCapacity = 500

	// SampleBufferCapacity bounds each resource-sample ring buffer
	SampleBufferCapacity = 100

	// LatencyBufferCapacity bounds the request-latency sequence
	LatencyBufferCapacity = 1000

	// MemorySampleInterval is the cadence of the memory sampler
	MemorySampleInterval = 30 * time.Second

	// CPUSampleInterval is the cadence of the CPU sampler
	CPUSampleInterval = 60 * time.Second

	// CPUProbeWindow is the differential window a single CPU probe measures
	CPUProbeWindow = 100 * time.Millisecond

	// CounterStoreTimeout bounds a single counter-store round trip
	CounterStoreTimeout = 500 * time.Millisecond

	// UsageQueryTimeout bounds a single usage-count query
	UsageQueryTimeout = 2 * time.Second
)

// ================================================================================
// Error Code Constants
// ================================================================================

// ErrorCode is a machine-readable code included in every deny response.
type ErrorCode string

const (
	// ErrCodeRateLimited indicates a rate-limit ceiling was hit
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"

	// ErrCodeSecurityBlocked indicates the source is on the blocked set
	ErrCodeSecurityBlocked ErrorCode = "SECURITY_BLOCKED"

	// ErrCodeMonthlyLimitExceeded indicates the monthly quota is exhausted
	ErrCodeMonthlyLimitExceeded ErrorCode = "MONTHLY_LIMIT_EXCEEDED"

	// ErrCodeDailyLimitExceeded indicates the daily quota is exhausted
	ErrCodeDailyLimitExceeded ErrorCode = "DAILY_LIMIT_EXCEEDED"

	// ErrCodeFeatureUnavailable indicates the plan lacks the requested feature
	ErrCodeFeatureUnavailable ErrorCode = "FEATURE_UNAVAILABLE"

	// ErrCodeInvalidPlan indicates an unknown plan id (configuration defect)
	ErrCodeInvalidPlan ErrorCode = "INVALID_PLAN"

	// ErrCodeUsageCheckFailed indicates the usage-count collaborator errored
	ErrCodeUsageCheckFailed ErrorCode = "USAGE_CHECK_FAILED"

	// ErrCodeStoreUnavailable is internal only; it is resolved to fail-open
	// or fail-closed per component policy and never surfaced directly
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// ErrCodeInvalidRequest indicates a malformed request
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// ErrCodeNotFound indicates a missing resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeServerError indicates an unexpected internal failure
	ErrCodeServerError ErrorCode = "SERVER_ERROR"
)

// ================================================================================
// Context Key Constants
// ================================================================================

// ContextKey is a typed key for request-scoped context values.
type ContextKey string

const (
	// ContextKeyRequestID carries the per-request correlation id
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyPrincipal carries the resolved principal identifier
	ContextKeyPrincipal ContextKey = "principal"

	// ContextKeyPlanID carries the resolved plan id
	ContextKeyPlanID ContextKey = "plan_id"
)

// ================================================================================
// HTTP Header Constants
// ================================================================================

const (
	// HeaderRateLimitLimit reports the policy ceiling
	HeaderRateLimitLimit = "X-RateLimit-Limit"

	// HeaderRateLimitRemaining reports requests left in the window
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"

	// HeaderRateLimitReset reports the window reset time (unix seconds)
	HeaderRateLimitReset = "X-RateLimit-Reset"

	// HeaderRequestID carries the correlation id
	HeaderRequestID = "X-Request-ID"
)
