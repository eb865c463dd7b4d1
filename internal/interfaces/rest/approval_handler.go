package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/formsage/backend/internal/application/services"
	"github.com/formsage/backend/internal/domain/models"
	appErrors "github.com/formsage/backend/pkg/errors"
	"github.com/formsage/backend/pkg/constants"
)

// ApprovalService defines the interface for approval operations
type ApprovalService interface {
	RecordDecision(ctx context.Context, submissionID string, stepIndex int, outcome services.DecisionOutcome, actorIdentity, reason string, isAdmin bool) (*models.Submission, error)
	GetPendingForApprover(ctx context.Context, approverIdentity string) ([]*models.Submission, error)
}

// ApprovalHandler handles approval decision API endpoints
type ApprovalHandler struct {
	svc ApprovalService
}

// NewApprovalHandler creates a new ApprovalHandler
func NewApprovalHandler(svc ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{svc: svc}
}

// DecisionRequest represents an approve/reject request.
// StepIndex pins the decision to the step the approver saw; a decision
// against a stale step is rejected instead of silently applying to
// whatever step is now active.
type DecisionRequest struct {
	StepIndex int    `json:"step_index"`
	Reason    string `json:"reason"`
}

// Approve handles POST /api/approvals/:submissionId/approve
func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.decide(c, services.DecisionApprove, "Submission approved")
}

// Reject handles POST /api/approvals/:submissionId/reject
func (h *ApprovalHandler) Reject(c *gin.Context) {
	h.decide(c, services.DecisionReject, "Submission rejected")
}

func (h *ApprovalHandler) decide(c *gin.Context, outcome services.DecisionOutcome, successMsg string) {
	submissionID := c.Param("submissionId")
	user := GetUserFromContext(c)
	if user == nil {
		RespondAppError(c, appErrors.NewUnauthorizedError("not authenticated"))
		return
	}

	var req DecisionRequest
	if !BindJSON(c, &req) {
		return
	}

	sub, err := h.svc.RecordDecision(c.Request.Context(), submissionID, req.StepIndex, outcome, user.Email, req.Reason, user.IsAdmin)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		constants.FieldMessage: successMsg,
		"submission":           sub,
	})
}

// GetPending handles GET /api/approvals/pending
// Admins may pass ?approver= to inspect another approver's queue.
func (h *ApprovalHandler) GetPending(c *gin.Context) {
	user := GetUserFromContext(c)
	if user == nil {
		RespondAppError(c, appErrors.NewUnauthorizedError("not authenticated"))
		return
	}

	approver := user.Email
	if q := c.Query("approver"); q != "" && user.IsAdmin {
		approver = q
	}

	HandleGetEnvelope(c, "submissions", func() (interface{}, error) {
		return h.svc.GetPendingForApprover(c.Request.Context(), approver)
	})
}
