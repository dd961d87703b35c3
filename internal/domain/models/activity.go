package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/scribeflow/gatekeeper/pkg/constants"
)

// SuspiciousActivity is a single recorded abuse signal. Records live in one
// bounded global sequence; per-source evaluation scans that sequence at
// record time.
type SuspiciousActivity struct {
	// ID is a unique record identifier
	ID uuid.UUID `json:"id"`

	// Source identifies where the activity originated (IP, principal)
	Source string `json:"source"`

	// Kind classifies the event
	Kind constants.ActivityKind `json:"kind"`

	// Details carries free-form context for operators
	Details string `json:"details"`

	// Timestamp is when the event was recorded
	Timestamp time.Time `json:"timestamp"`
}

// NewSuspiciousActivity constructs a record stamped with the given time.
func NewSuspiciousActivity(source string, kind constants.ActivityKind, details string, at time.Time) SuspiciousActivity {
	return SuspiciousActivity{
		ID:        uuid.New(),
		Source:    source,
		Kind:      kind,
		Details:   details,
		Timestamp: at,
	}
}
