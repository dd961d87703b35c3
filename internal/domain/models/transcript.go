package models

import (
	"time"

	"github.com/google/uuid"
)

// Transcript statuses.
const (
	TranscriptStatusPending  = "pending"
	TranscriptStatusAnalyzed = "analyzed"
)

// Transcript is one uploaded conversation transcript. Creation events are
// what quota counting measures: a principal's monthly and daily usage is the
// number of transcripts created since the window start.
type Transcript struct {
	ID        uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	Principal string                 `gorm:"index:idx_transcripts_principal_created,priority:1;not null" json:"principal"`
	Title     string                 `gorm:"size:255" json:"title"`
	Content   string                 `gorm:"type:text" json:"content"`
	Metadata  map[string]interface{} `gorm:"serializer:json" json:"metadata,omitempty"`
	Status    string                 `gorm:"size:32;default:pending" json:"status"`
	CreatedAt time.Time              `gorm:"index:idx_transcripts_principal_created,priority:2" json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// NewTranscript creates a pending transcript for a principal.
func NewTranscript(principal, title, content string) *Transcript {
	return &Transcript{
		ID:        uuid.New(),
		Principal: principal,
		Title:     title,
		Content:   content,
		Status:    TranscriptStatusPending,
	}
}
