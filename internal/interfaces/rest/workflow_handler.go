package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/formsage/backend/internal/domain/models"
	"github.com/formsage/backend/pkg/constants"
)

// WorkflowService defines the interface for workflow configuration
type WorkflowService interface {
	SaveWorkflow(ctx context.Context, def *models.WorkflowDefinition) (*models.WorkflowDefinition, error)
	GetWorkflow(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	GetWorkflowForForm(ctx context.Context, formID string) (*models.WorkflowDefinition, error)
	DeleteWorkflow(ctx context.Context, id string) error
	ValidateWorkflow(def *models.WorkflowDefinition) error
}

// WorkflowHandler handles workflow configuration API endpoints
type WorkflowHandler struct {
	svc WorkflowService
}

// NewWorkflowHandler creates a new WorkflowHandler
func NewWorkflowHandler(svc WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{svc: svc}
}

// Save handles POST /api/workflows
func (h *WorkflowHandler) Save(c *gin.Context) {
	var def models.WorkflowDefinition
	if !BindJSON(c, &def) {
		return
	}

	saved, err := h.svc.SaveWorkflow(c.Request.Context(), &def)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		constants.FieldMessage: "Workflow saved",
		"workflow":             saved,
	})
}

// Get handles GET /api/workflows/:id
func (h *WorkflowHandler) Get(c *gin.Context) {
	id := c.Param("id")
	HandleGetEnvelope(c, "workflow", func() (interface{}, error) {
		return h.svc.GetWorkflow(c.Request.Context(), id)
	})
}

// GetForForm handles GET /api/workflows/form/:formId
func (h *WorkflowHandler) GetForForm(c *gin.Context) {
	formID := c.Param("formId")
	HandleGetEnvelope(c, "workflow", func() (interface{}, error) {
		return h.svc.GetWorkflowForForm(c.Request.Context(), formID)
	})
}

// Delete handles DELETE /api/workflows/:id
func (h *WorkflowHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.DeleteWorkflow(c.Request.Context(), id); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: "Workflow retired"})
}

// Validate handles POST /api/workflows/validate
// Dry-run check for the builder UI; nothing is persisted.
func (h *WorkflowHandler) Validate(c *gin.Context) {
	var def models.WorkflowDefinition
	if !BindJSON(c, &def) {
		return
	}

	if err := h.svc.ValidateWorkflow(&def); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}
