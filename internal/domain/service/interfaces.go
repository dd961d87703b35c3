// Package service defines the admission-control domain services and the
// collaborator interfaces they consume.
package service

import (
	"context"
	"net/http"
	"time"

	"github.com/scribeflow/gatekeeper/pkg/errors"
)

// UsageCounter is the usage-count collaborator consumed by the quota tracker.
// It is backed by the transcript-creation record store and treated as
// read-only and idempotent.
type UsageCounter interface {
	// CountSince counts a principal's resource-creation events with
	// timestamp >= since.
	CountSince(ctx context.Context, principal string, since time.Time) (int64, error)
}

// CounterStore is the keyed counter consumed by the rate limiter. Increment
// must be atomic with expiry: the first increment of a key starts its window,
// and the key expires window after that instant.
type CounterStore interface {
	// Increment adds one to the counter for key, creating it with the given
	// window TTL if absent. It returns the post-increment count and the time
	// the window resets.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)

	// Reset clears the counter for key.
	Reset(ctx context.Context, key string) error
}

// Decision is the single outcome every gate returns across the pipeline
// boundary. On allow, only Allowed is meaningful; on deny, StatusCode and
// Body describe the structured refusal for the HTTP layer to translate.
type Decision struct {
	Allowed    bool
	StatusCode int
	Body       *errors.ErrorResponse
}

// Allow is the decision that lets a request proceed.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny builds a deny decision from a structured error.
func Deny(err *errors.AppError) Decision {
	return Decision{
		Allowed:    false,
		StatusCode: err.HTTPStatus(),
		Body:       errors.ToErrorResponse(err),
	}
}

// DenyStatus exposes the HTTP status of a deny, defaulting to 500 when a
// decision was built without one.
func (d Decision) DenyStatus() int {
	if d.StatusCode == 0 {
		return http.StatusInternalServerError
	}
	return d.StatusCode
}
