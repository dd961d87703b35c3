package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scribeflow/gatekeeper/internal/domain/models"
	"github.com/scribeflow/gatekeeper/internal/domain/service"
	"github.com/scribeflow/gatekeeper/pkg/errors"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

// TranscriptRepository persists transcripts and serves as the usage-count
// collaborator: quota windows are answered by counting creation timestamps.
type TranscriptRepository struct {
	db     *gorm.DB
	logger logger.Logger
}

var _ service.UsageCounter = (*TranscriptRepository)(nil)

// NewTranscriptRepository creates the repository over an open database handle.
func NewTranscriptRepository(db *gorm.DB, log logger.Logger) *TranscriptRepository {
	return &TranscriptRepository{
		db:     db,
		logger: log.WithComponent("transcript_repository"),
	}
}

// Create persists a new transcript.
func (r *TranscriptRepository) Create(ctx context.Context, t *models.Transcript) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return errors.ErrStoreUnavailable("transcript", err)
	}
	return nil
}

// GetByID fetches one transcript owned by the principal.
func (r *TranscriptRepository) GetByID(ctx context.Context, principal string, id uuid.UUID) (*models.Transcript, error) {
	var t models.Transcript
	err := r.db.WithContext(ctx).
		Where("id = ? AND principal = ?", id, principal).
		First(&t).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound("transcript")
		}
		return nil, errors.ErrStoreUnavailable("transcript", err)
	}
	return &t, nil
}

// MarkAnalyzed transitions a transcript to the analyzed status.
func (r *TranscriptRepository) MarkAnalyzed(ctx context.Context, principal string, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.Transcript{}).
		Where("id = ? AND principal = ?", id, principal).
		Update("status", models.TranscriptStatusAnalyzed)
	if result.Error != nil {
		return errors.ErrStoreUnavailable("transcript", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.ErrNotFound("transcript")
	}
	return nil
}

// CountSince counts the principal's transcript creations at or after the
// window start. Read-only and idempotent; quota checks call it twice per
// request with different window starts.
func (r *TranscriptRepository) CountSince(ctx context.Context, principal string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Transcript{}).
		Where("principal = ? AND created_at >= ?", principal, since).
		Count(&count).Error
	if err != nil {
		return 0, errors.ErrStoreUnavailable("transcript", err)
	}
	return count, nil
}
