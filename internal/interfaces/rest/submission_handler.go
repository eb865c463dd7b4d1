package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/formsage/backend/internal/domain/models"
	"github.com/formsage/backend/pkg/constants"
)

// SubmissionService defines the interface for submission operations
type SubmissionService interface {
	CreateSubmission(ctx context.Context, formID, submitterEmail string, data map[string]interface{}) (*models.Submission, error)
	Resubmit(ctx context.Context, priorSubmissionID string, data map[string]interface{}) (*models.Submission, error)
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	GetHistory(ctx context.Context, id string) ([]models.StepDecision, error)
}

// SubmissionHandler handles submission API endpoints
type SubmissionHandler struct {
	svc SubmissionService
}

// NewSubmissionHandler creates a new SubmissionHandler
func NewSubmissionHandler(svc SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{svc: svc}
}

// CreateSubmissionRequest represents a new form submission
type CreateSubmissionRequest struct {
	FormID         string                 `json:"form_id" binding:"required"`
	SubmitterEmail string                 `json:"submitter_email"`
	Data           map[string]interface{} `json:"data"`
}

// ResubmitRequest carries the corrected data for a resubmission
type ResubmitRequest struct {
	Data map[string]interface{} `json:"data"`
}

// Create handles POST /api/submissions
func (h *SubmissionHandler) Create(c *gin.Context) {
	var req CreateSubmissionRequest
	if !BindJSON(c, &req) {
		return
	}

	sub, err := h.svc.CreateSubmission(c.Request.Context(), req.FormID, req.SubmitterEmail, req.Data)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		constants.FieldMessage: "Submission received",
		"submission":           sub,
	})
}

// Get handles GET /api/submissions/:id
func (h *SubmissionHandler) Get(c *gin.Context) {
	id := c.Param("id")
	HandleGetEnvelope(c, "submission", func() (interface{}, error) {
		return h.svc.GetSubmission(c.Request.Context(), id)
	})
}

// GetHistory handles GET /api/submissions/:id/history
func (h *SubmissionHandler) GetHistory(c *gin.Context) {
	id := c.Param("id")
	HandleGetEnvelope(c, "history", func() (interface{}, error) {
		return h.svc.GetHistory(c.Request.Context(), id)
	})
}

// Resubmit handles POST /api/submissions/:id/resubmit
func (h *SubmissionHandler) Resubmit(c *gin.Context) {
	id := c.Param("id")

	var req ResubmitRequest
	if !BindJSON(c, &req) {
		return
	}

	sub, err := h.svc.Resubmit(c.Request.Context(), id, req.Data)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		constants.FieldMessage: "Submission resubmitted",
		"submission":           sub,
	})
}
