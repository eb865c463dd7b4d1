package ports

import (
	"context"
	"time"

	"github.com/formsage/backend/internal/domain/models"
)

// SubmissionStore persists submissions and their dispatch ledger.
// The pipeline is the only writer of submission state; the dispatcher
// only claims ledger entries.
type SubmissionStore interface {
	Insert(ctx context.Context, sub *models.Submission) error
	Get(ctx context.Context, id string) (*models.Submission, error)
	Update(ctx context.Context, sub *models.Submission) error

	// ClaimAction atomically records (actionID, trigger) in the submission's
	// dispatch ledger. It returns true exactly once per occurrence; a second
	// claim for the same pair returns false.
	ClaimAction(ctx context.Context, submissionID, actionID string, trigger models.ActionTrigger) (bool, error)

	// ListPendingForApprover returns in-flight submissions waiting on the
	// given approver identity.
	ListPendingForApprover(ctx context.Context, approverIdentity string) ([]*models.Submission, error)

	// ListStale returns non-terminal submissions last modified before cutoff.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Submission, error)
}

// WorkflowProvider supplies workflow definitions to the engine.
// The engine treats definitions as read-only. GetByForm resolves the
// form's current definition (nil, nil means the workflow is disabled);
// GetByID resolves a definition snapshot, current or superseded, so an
// in-flight submission always sees the definition it started under.
type WorkflowProvider interface {
	GetByForm(ctx context.Context, formID string) (*models.WorkflowDefinition, error)
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
}

// WorkflowStore adds the write side used by the admin configuration
// surface. Definitions are immutable: Save publishes a new snapshot as
// the form's current definition, Delete retires one from use by new
// submissions. Neither touches superseded snapshots.
type WorkflowStore interface {
	WorkflowProvider
	Save(ctx context.Context, def *models.WorkflowDefinition) error
	Delete(ctx context.Context, id string) error
}

// TimeoutScheduler tracks one deadline per active step-in-progress.
// Arm replaces any prior deadline for the same (submission, step) pair;
// Disarm is idempotent. Disarming is best-effort: the pipeline rechecks
// submission state before acting on a fired timeout.
type TimeoutScheduler interface {
	Arm(submissionID string, stepIndex int, deadline time.Time)
	Disarm(submissionID string, stepIndex int)
}

// Sender delivers one post-submission action to the outside world.
// Concrete senders (SMTP, HTTP webhook, chat API) are external
// collaborators; implementations here are thin boundary adapters.
type Sender interface {
	Send(ctx context.Context, action *models.PostSubmissionAction, snapshot *models.Submission) error
}

// ActionLogStore records action execution outcomes for manual inspection.
// A FAILED entry never affects the submission's own status.
type ActionLogStore interface {
	RecordSuccess(ctx context.Context, submissionID, actionID string, trigger models.ActionTrigger, attempts int) error
	RecordFailure(ctx context.Context, submissionID, actionID string, trigger models.ActionTrigger, attempts int, lastErr string) error
}
