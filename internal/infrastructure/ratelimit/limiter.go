// Package ratelimit provides keyed, fixed-window request rate limiting with
// pluggable counter stores.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/scribeflow/gatekeeper/internal/domain/service"
	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

// Request is the transport-agnostic view of an inbound request the limiter
// needs for key extraction and skip decisions.
type Request struct {
	// Path is the request path, used by skip predicates
	Path string

	// SourceIP is the client network address, the default limit key
	SourceIP string

	// Email is the asserted identity on authentication attempts; auth
	// policies key on email+IP to limit credential stuffing per identity
	// rather than per network address
	Email string
}

// Policy configures one endpoint class. Each scope has independent counters
// because abuse tolerance differs by the cost of the underlying operation.
type Policy struct {
	// Scope names the endpoint class
	Scope constants.RateLimitScope

	// Window is the fixed counting window
	Window time.Duration

	// Max is the inclusive cap: the Max-th request in a window is allowed,
	// the Max+1-th is denied
	Max int64

	// KeyFunc extracts the counter key from a request. Nil means source IP.
	KeyFunc func(Request) string

	// Skip exempts requests (health checks, static assets) from counting.
	// Nil means nothing is skipped.
	Skip func(Request) bool
}

// Result is the outcome of a rate-limit check.
type Result struct {
	// Allowed indicates whether the request may proceed
	Allowed bool

	// Limit is the policy ceiling
	Limit int64

	// Remaining is the number of requests left in the current window
	Remaining int64

	// ResetAt is when the current window rolls over
	ResetAt time.Time
}

// RateLimiter counts requests per key over fixed windows. It is the first
// gate in the pipeline and protects everything below it from volumetric
// abuse, so it fails open: when the backing store is unreachable the request
// is allowed and the failure logged, because blocking legitimate traffic on a
// store outage is worse than occasional under-limiting.
type RateLimiter struct {
	store        service.CounterStore
	policies     map[constants.RateLimitScope]Policy
	storeTimeout time.Duration
	logger       logger.Logger
}

// NewRateLimiter creates a rate limiter over the given counter store. Any
// scope not present in policies falls back to the general policy.
func NewRateLimiter(store service.CounterStore, policies []Policy, log logger.Logger) *RateLimiter {
	byScope := make(map[constants.RateLimitScope]Policy, len(policies))
	for _, p := range policies {
		byScope[p.Scope] = p
	}

	return &RateLimiter{
		store:        store,
		policies:     byScope,
		storeTimeout: constants.CounterStoreTimeout,
		logger:       log.WithComponent("rate_limiter"),
	}
}

// DefaultPolicies returns the per-scope windows and ceilings used when
// configuration does not override them.
func DefaultPolicies() []Policy {
	authKey := func(r Request) string {
		return r.Email + "|" + r.SourceIP
	}

	return []Policy{
		{Scope: constants.ScopeGeneral, Window: 15 * time.Minute, Max: 100},
		{Scope: constants.ScopeAuth, Window: 15 * time.Minute, Max: 5, KeyFunc: authKey},
		{Scope: constants.ScopeUpload, Window: time.Hour, Max: 20},
		{Scope: constants.ScopeAnalysis, Window: time.Hour, Max: 10},
		{Scope: constants.ScopePayment, Window: time.Hour, Max: 10},
	}
}

// Check counts the request against the scope's policy and decides admission.
// The counter for an absent or expired key starts a fresh window at the
// store; the increment and expiry are atomic there, so concurrent instances
// never under-count a shared key.
func (rl *RateLimiter) Check(ctx context.Context, req Request, scope constants.RateLimitScope) Result {
	policy, ok := rl.policies[scope]
	if !ok {
		policy = rl.policies[constants.ScopeGeneral]
	}

	if policy.Skip != nil && policy.Skip(req) {
		return Result{Allowed: true, Limit: policy.Max, Remaining: policy.Max}
	}

	key := rl.buildKey(policy, req)

	storeCtx, cancel := context.WithTimeout(ctx, rl.storeTimeout)
	defer cancel()

	count, resetAt, err := rl.store.Increment(storeCtx, key, policy.Window)
	if err != nil {
		// Fail open: rate limiting is a best-effort abuse deterrent, not a
		// correctness guarantee.
		rl.logger.Error(ctx, "counter store unavailable, failing open", err,
			logger.String("scope", string(scope)),
			logger.String("key", key),
		)
		return Result{Allowed: true, Limit: policy.Max, Remaining: policy.Max}
	}

	remaining := policy.Max - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= policy.Max,
		Limit:     policy.Max,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// Reset clears the counter for the request's key under the given scope.
// Admin-only escape hatch.
func (rl *RateLimiter) Reset(ctx context.Context, req Request, scope constants.RateLimitScope) error {
	policy, ok := rl.policies[scope]
	if !ok {
		policy = rl.policies[constants.ScopeGeneral]
	}
	return rl.store.Reset(ctx, rl.buildKey(policy, req))
}

// Policy returns the configured policy for a scope.
func (rl *RateLimiter) Policy(scope constants.RateLimitScope) (Policy, bool) {
	p, ok := rl.policies[scope]
	return p, ok
}

func (rl *RateLimiter) buildKey(policy Policy, req Request) string {
	identity := req.SourceIP
	if policy.KeyFunc != nil {
		identity = policy.KeyFunc(req)
	}
	return fmt.Sprintf("ratelimit:%s:%s", policy.Scope, identity)
}
