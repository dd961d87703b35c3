// Package handlers implements the HTTP endpoints behind the admission
// pipeline.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scribeflow/gatekeeper/internal/domain/models"
	"github.com/scribeflow/gatekeeper/internal/domain/service"
	"github.com/scribeflow/gatekeeper/internal/infrastructure/persistence/postgres"
	"github.com/scribeflow/gatekeeper/internal/interfaces/http/middleware"
	"github.com/scribeflow/gatekeeper/pkg/constants"
	"github.com/scribeflow/gatekeeper/pkg/errors"
	"github.com/scribeflow/gatekeeper/pkg/logger"
	"github.com/scribeflow/gatekeeper/pkg/utils"
)

// TranscriptHandler serves transcript creation and analysis. Creation sits
// behind the quota gate; analysis behind the feature gate.
type TranscriptHandler struct {
	repo    *postgres.TranscriptRepository
	monitor *service.SecurityMonitor
	logger  logger.Logger
}

// NewTranscriptHandler creates the handler.
func NewTranscriptHandler(repo *postgres.TranscriptRepository, monitor *service.SecurityMonitor, log logger.Logger) *TranscriptHandler {
	return &TranscriptHandler{
		repo:    repo,
		monitor: monitor,
		logger:  log.WithComponent("transcript_handler"),
	}
}

type createTranscriptRequest struct {
	Title    string                 `json:"title" binding:"required,max=255"`
	Content  string                 `json:"content" binding:"required"`
	Metadata map[string]interface{} `json:"metadata"`
}

type createTranscriptResponse struct {
	Transcript *models.Transcript    `json:"transcript"`
	Usage      *models.UsageSnapshot `json:"usage,omitempty"`
}

// Create persists a new transcript. The quota gate has already admitted the
// request; its usage snapshot is echoed so clients can display remaining
// allowance.
func (h *TranscriptHandler) Create(c *gin.Context) {
	var req createTranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.monitor.RecordActivity(c.Request.Context(), c.ClientIP(),
			constants.ActivityInvalidPayload, "transcript create")
		appErr := errors.ErrInvalidRequest(err.Error())
		c.JSON(appErr.HTTPStatus(), errors.ToErrorResponse(appErr))
		return
	}

	transcript := models.NewTranscript(
		middleware.PrincipalFrom(c),
		utils.SanitizeString(req.Title),
		utils.SanitizeString(req.Content),
	)
	if len(req.Metadata) > 0 {
		transcript.Metadata, _ = utils.Sanitize(req.Metadata).(map[string]interface{})
	}

	if err := h.repo.Create(c.Request.Context(), transcript); err != nil {
		h.logger.Error(c.Request.Context(), "transcript create failed", err)
		c.Error(err)
		c.JSON(http.StatusInternalServerError, errors.ToGenericErrorResponse(err))
		return
	}

	resp := createTranscriptResponse{Transcript: transcript}
	if usage, ok := middleware.UsageFrom(c); ok {
		resp.Usage = usage
	}

	c.JSON(http.StatusCreated, resp)
}

// Get fetches one of the caller's transcripts.
func (h *TranscriptHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		appErr := errors.ErrInvalidRequest("invalid transcript id")
		c.JSON(appErr.HTTPStatus(), errors.ToErrorResponse(appErr))
		return
	}

	transcript, err := h.repo.GetByID(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			c.JSON(appErr.HTTPStatus(), errors.ToErrorResponse(appErr))
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, errors.ToGenericErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, transcript)
}

// Analyze runs advanced analysis on a transcript. The feature gate has
// already verified the plan grants it.
func (h *TranscriptHandler) Analyze(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		appErr := errors.ErrInvalidRequest("invalid transcript id")
		c.JSON(appErr.HTTPStatus(), errors.ToErrorResponse(appErr))
		return
	}

	principal := middleware.PrincipalFrom(c)
	if err := h.repo.MarkAnalyzed(c.Request.Context(), principal, id); err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			c.JSON(appErr.HTTPStatus(), errors.ToErrorResponse(appErr))
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, errors.ToGenericErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": models.TranscriptStatusAnalyzed})
}
