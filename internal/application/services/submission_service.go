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

// SubmissionService is the application-facing entry point for submissions.
// It validates input, checks authorization, and delegates every state
// transition to the ApprovalPipeline.
type SubmissionService struct {
	store     ports.SubmissionStore
	workflows ports.WorkflowProvider
	pipeline  *ApprovalPipeline
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(store ports.SubmissionStore, workflows ports.WorkflowProvider, pipeline *ApprovalPipeline) *SubmissionService {
	return &SubmissionService{
		store:     store,
		workflows: workflows,
		pipeline:  pipeline,
	}
}

// CreateSubmission persists a new DRAFT submission and starts its approval
// lifecycle. The returned submission reflects the post-start state (it may
// already be APPROVED when the form has no workflow, or IN_REVIEW on the
// first step).
func (s *SubmissionService) CreateSubmission(ctx context.Context, formID, submitterEmail string, data map[string]interface{}) (*models.Submission, error) {
	if formID == "" {
		return nil, appErrors.NewValidationError("form_id", "form_id is required")
	}
	if data == nil {
		data = map[string]interface{}{}
	}

	now := time.Now()
	sub := &models.Submission{
		ID:               uuid.New().String(),
		FormID:           formID,
		Data:             data,
		SubmitterEmail:   submitterEmail,
		Status:           models.SubmissionDraft,
		CreatedDate:      now,
		LastModifiedDate: now,
	}

	def, err := s.workflows.GetByForm(ctx, formID)
	if err != nil {
		return nil, appErrors.NewInternalError("failed to resolve workflow", err)
	}
	if def != nil {
		sub.WorkflowDefinitionID = def.ID
	}

	if err := s.store.Insert(ctx, sub); err != nil {
		return nil, appErrors.NewInternalError("failed to create submission", err)
	}
	log.Printf("✅ Created submission %s for form %s", sub.ID, formID)

	if err := s.pipeline.Start(ctx, sub.ID); err != nil {
		return nil, err
	}

	return s.store.Get(ctx, sub.ID)
}

// RecordDecision applies an approve/reject decision from an approver.
// Only the approver the active step is waiting on (or an admin) may decide.
func (s *SubmissionService) RecordDecision(ctx context.Context, submissionID string, stepIndex int, outcome DecisionOutcome, actorIdentity, reason string, isAdmin bool) (*models.Submission, error) {
	if outcome != DecisionApprove && outcome != DecisionReject {
		return nil, appErrors.NewValidationError("outcome", "outcome must be approve or reject")
	}

	sub, err := s.store.Get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, appErrors.NewNotFoundError("submission", submissionID)
	}

	if !isAdmin && sub.CurrentApproverIdentity != actorIdentity {
		return nil, appErrors.NewPermissionError("decide", "submission")
	}

	if err := s.pipeline.Decide(ctx, submissionID, stepIndex, outcome, actorIdentity, reason); err != nil {
		return nil, err
	}

	return s.store.Get(ctx, submissionID)
}

// Resubmit creates a fresh submission that replaces a rejected one, linked
// through PriorSubmissionID. The prior submission must belong to a workflow
// that allows resubmission.
func (s *SubmissionService) Resubmit(ctx context.Context, priorSubmissionID string, data map[string]interface{}) (*models.Submission, error) {
	prior, err := s.store.Get(ctx, priorSubmissionID)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, appErrors.NewNotFoundError("submission", priorSubmissionID)
	}
	if prior.Status != models.SubmissionRejected && prior.Status != models.SubmissionDraft {
		return nil, appErrors.NewInvalidTransitionError(priorSubmissionID, "only rejected submissions can be resubmitted")
	}

	if prior.WorkflowDefinitionID != "" {
		def, err := s.workflows.GetByID(ctx, prior.WorkflowDefinitionID)
		if err != nil {
			return nil, err
		}
		if def != nil && !def.Settings.AllowResubmission {
			return nil, appErrors.NewInvalidTransitionError(priorSubmissionID, "workflow does not allow resubmission")
		}
	}

	if data == nil {
		data = prior.Data
	}

	now := time.Now()
	sub := &models.Submission{
		ID:                   uuid.New().String(),
		FormID:               prior.FormID,
		Data:                 data,
		SubmitterEmail:       prior.SubmitterEmail,
		WorkflowDefinitionID: prior.WorkflowDefinitionID,
		Status:               models.SubmissionDraft,
		PriorSubmissionID:    prior.ID,
		CreatedDate:          now,
		LastModifiedDate:     now,
	}

	if err := s.store.Insert(ctx, sub); err != nil {
		return nil, appErrors.NewInternalError("failed to create resubmission", err)
	}
	log.Printf("✅ Resubmitted %s as %s", prior.ID, sub.ID)

	if err := s.pipeline.Start(ctx, sub.ID); err != nil {
		return nil, err
	}

	return s.store.Get(ctx, sub.ID)
}

// GetSubmission fetches one submission by ID
func (s *SubmissionService) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, appErrors.NewNotFoundError("submission", id)
	}
	return sub, nil
}

// GetPendingForApprover lists submissions waiting on the approver
func (s *SubmissionService) GetPendingForApprover(ctx context.Context, approverIdentity string) ([]*models.Submission, error) {
	return s.store.ListPendingForApprover(ctx, approverIdentity)
}

// GetHistory returns the decision audit trail of a submission
func (s *SubmissionService) GetHistory(ctx context.Context, id string) ([]models.StepDecision, error) {
	sub, err := s.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	return sub.StepHistory, nil
}
