package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/formsage/backend/internal/domain/models"
	"github.com/formsage/backend/internal/domain/ports"
	appErrors "github.com/formsage/backend/pkg/errors"
)

// WorkflowService manages workflow definitions for form owners.
// Definitions are validated on every save; a definition that fails
// validation never reaches the store, so the engine only ever loads
// well-formed configuration.
type WorkflowService struct {
	store ports.WorkflowStore
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(store ports.WorkflowStore) *WorkflowService {
	return &WorkflowService{store: store}
}

// SaveWorkflow publishes the definition as the form's current workflow.
// Definitions are immutable snapshots: every save gets a fresh ID and
// supersedes the previous one, while submissions already in flight keep
// resolving the snapshot they started under.
func (s *WorkflowService) SaveWorkflow(ctx context.Context, def *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if def.FormID == "" {
		return nil, appErrors.NewValidationError("form_id", "form_id is required")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	def.ID = uuid.New().String()
	def.LastModified = time.Now()

	if err := s.store.Save(ctx, def); err != nil {
		return nil, appErrors.NewInternalError("failed to save workflow", err)
	}
	log.Printf("✅ Saved workflow %s for form %s (%d steps, %d actions)",
		def.ID, def.FormID, len(def.ApprovalSteps), len(def.PostSubmissionActions))
	return def, nil
}

// GetWorkflow fetches a workflow definition by ID
func (s *WorkflowService) GetWorkflow(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	def, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, appErrors.NewNotFoundError("workflow", id)
	}
	return def, nil
}

// GetWorkflowForForm fetches the workflow attached to a form, nil when
// the form has none
func (s *WorkflowService) GetWorkflowForForm(ctx context.Context, formID string) (*models.WorkflowDefinition, error) {
	return s.store.GetByForm(ctx, formID)
}

// DeleteWorkflow retires a workflow definition: the form stops using it
// for new submissions, but the snapshot stays resolvable by ID so
// submissions already in flight advance under the rules they started with.
func (s *WorkflowService) DeleteWorkflow(ctx context.Context, id string) error {
	def, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if def == nil {
		return appErrors.NewNotFoundError("workflow", id)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return appErrors.NewInternalError("failed to retire workflow", err)
	}
	log.Printf("🗑️ Retired workflow %s (form %s)", id, def.FormID)
	return nil
}

// ValidateWorkflow runs definition validation without persisting, for the
// builder UI's dry-run check
func (s *WorkflowService) ValidateWorkflow(def *models.WorkflowDefinition) error {
	return def.Validate()
}
