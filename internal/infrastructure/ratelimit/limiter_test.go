package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

// fakeStore counts in a plain map and can be forced to fail.
type fakeStore struct {
	counts map[string]int64
	resets map[string]time.Time
	err    error
	keys   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		counts: make(map[string]int64),
		resets: make(map[string]time.Time),
	}
}

func (f *fakeStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	if f.err != nil {
		return 0, time.Time{}, f.err
	}
	f.keys = append(f.keys, key)
	if _, ok := f.counts[key]; !ok {
		f.resets[key] = time.Now().Add(window)
	}
	f.counts[key]++
	return f.counts[key], f.resets[key], nil
}

func (f *fakeStore) Reset(ctx context.Context, key string) error {
	delete(f.counts, key)
	delete(f.resets, key)
	return nil
}

func newTestLimiter(store *fakeStore, policies []Policy) *RateLimiter {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return NewRateLimiter(store, policies, logger.NewNoopLogger())
}

func TestRateLimiter_InclusiveCap(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	limiter := newTestLimiter(store, []Policy{
		{Scope: constants.ScopeGeneral, Window: time.Minute, Max: 3},
	})
	req := Request{SourceIP: "203.0.113.9"}

	// The max-th request is allowed, the max+1-th is denied.
	for i := int64(1); i <= 3; i++ {
		result := limiter.Check(ctx, req, constants.ScopeGeneral)
		assert.True(t, result.Allowed, "request %d should be allowed", i)
		assert.Equal(t, 3-i, result.Remaining)
	}

	result := limiter.Check(ctx, req, constants.ScopeGeneral)
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(0), result.Remaining)
	assert.False(t, result.ResetAt.IsZero())
}

func TestRateLimiter_FailsOpenOnStoreError(t *testing.T) {
	store := newFakeStore()
	store.err = assert.AnError
	limiter := newTestLimiter(store, nil)

	result := limiter.Check(context.Background(), Request{SourceIP: "203.0.113.9"}, constants.ScopeGeneral)

	assert.True(t, result.Allowed)
}

func TestRateLimiter_AuthKeyedByEmailAndIP(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	limiter := newTestLimiter(store, nil)

	limiter.Check(ctx, Request{SourceIP: "203.0.113.9", Email: "a@example.com"}, constants.ScopeAuth)
	limiter.Check(ctx, Request{SourceIP: "203.0.113.9", Email: "b@example.com"}, constants.ScopeAuth)

	// Different identities from the same address count independently.
	assert.Len(t, store.counts, 2)
	assert.Contains(t, store.keys[0], "a@example.com|203.0.113.9")
	assert.Contains(t, store.keys[1], "b@example.com|203.0.113.9")
}

func TestRateLimiter_ScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	limiter := newTestLimiter(store, []Policy{
		{Scope: constants.ScopeGeneral, Window: time.Minute, Max: 100},
		{Scope: constants.ScopeAnalysis, Window: time.Minute, Max: 1},
	})
	req := Request{SourceIP: "203.0.113.9"}

	assert.True(t, limiter.Check(ctx, req, constants.ScopeAnalysis).Allowed)
	assert.False(t, limiter.Check(ctx, req, constants.ScopeAnalysis).Allowed)
	// The general scope is untouched by analysis counting.
	assert.True(t, limiter.Check(ctx, req, constants.ScopeGeneral).Allowed)
}

func TestRateLimiter_SkipPredicate(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	limiter := newTestLimiter(store, []Policy{
		{
			Scope:  constants.ScopeGeneral,
			Window: time.Minute,
			Max:    1,
			Skip:   func(r Request) bool { return r.Path == "/healthz" },
		},
	})

	for i := 0; i < 5; i++ {
		result := limiter.Check(ctx, Request{SourceIP: "203.0.113.9", Path: "/healthz"}, constants.ScopeGeneral)
		assert.True(t, result.Allowed)
	}
	assert.Empty(t, store.counts)
}

func TestRateLimiter_UnknownScopeFallsBackToGeneral(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	limiter := newTestLimiter(store, []Policy{
		{Scope: constants.ScopeGeneral, Window: time.Minute, Max: 2},
	})

	result := limiter.Check(ctx, Request{SourceIP: "203.0.113.9"}, "unconfigured")

	assert.True(t, result.Allowed)
	assert.Equal(t, int64(2), result.Limit)
}

func TestRateLimiter_Reset(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	limiter := newTestLimiter(store, []Policy{
		{Scope: constants.ScopeGeneral, Window: time.Minute, Max: 1},
	})
	req := Request{SourceIP: "203.0.113.9"}

	assert.True(t, limiter.Check(ctx, req, constants.ScopeGeneral).Allowed)
	assert.False(t, limiter.Check(ctx, req, constants.ScopeGeneral).Allowed)

	assert.NoError(t, limiter.Reset(ctx, req, constants.ScopeGeneral))
	assert.True(t, limiter.Check(ctx, req, constants.ScopeGeneral).Allowed)
}
