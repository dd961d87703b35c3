package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/scribeflow/gatekeeper/internal/domain/models"
	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/errors"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

func newTestRepository(t *testing.T) *TranscriptRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Transcript{}))

	return NewTranscriptRepository(db, logger.NewNoopLogger())
}

func createAt(t *testing.T, repo *TranscriptRepository, principal string, at time.Time) *models.Transcript {
	t.Helper()

	tr := models.NewTranscript(principal, "weekly sync", "hello")
	tr.CreatedAt = at
	tr.UpdatedAt = at
	require.NoError(t, repo.Create(context.Background(), tr))
	return tr
}

func TestTranscriptRepository_CountSince(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

	createAt(t, repo, "user-1", now.Add(-48*time.Hour))
	createAt(t, repo, "user-1", now.Add(-2*time.Hour))
	createAt(t, repo, "user-1", now.Add(-time.Hour))
	createAt(t, repo, "user-2", now.Add(-time.Hour))

	count, err := repo.CountSince(ctx, "user-1", models.DayStart(now))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = repo.CountSince(ctx, "user-1", now.Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = repo.CountSince(ctx, "user-3", models.DayStart(now))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTranscriptRepository_CountSinceBoundaryIsInclusive(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	dayStart := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)

	createAt(t, repo, "user-1", dayStart)

	count, err := repo.CountSince(ctx, "user-1", dayStart)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTranscriptRepository_GetByIDScopedToPrincipal(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

	tr := createAt(t, repo, "user-1", now)

	got, err := repo.GetByID(ctx, "user-1", tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, got.ID)

	// Another principal cannot see it.
	_, err = repo.GetByID(ctx, "user-2", tr.ID)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, constants.ErrCodeNotFound, appErr.Code())
}

func TestTranscriptRepository_MarkAnalyzed(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

	tr := createAt(t, repo, "user-1", now)

	require.NoError(t, repo.MarkAnalyzed(ctx, "user-1", tr.ID))

	got, err := repo.GetByID(ctx, "user-1", tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptStatusAnalyzed, got.Status)

	err = repo.MarkAnalyzed(ctx, "user-1", uuid.New())
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, constants.ErrCodeNotFound, appErr.Code())
}
