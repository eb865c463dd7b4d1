package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/formsage/backend/internal/domain/events"
	"github.com/formsage/backend/internal/domain/models"
	"github.com/formsage/backend/internal/domain/ports"
	appErrors "github.com/formsage/backend/pkg/errors"
)

// SystemActor is the actor identity recorded for decisions the engine
// takes on its own (auto-approvals and timeout outcomes)
const SystemActor = "system"

// DecisionOutcome is the outcome an approver can record on a step
type DecisionOutcome string

const (
	DecisionApprove DecisionOutcome = "approve"
	DecisionReject  DecisionOutcome = "reject"
)

// ApprovalPipeline owns all submission state transitions: it advances a
// submission through its workflow's ordered approval steps, applying
// auto-approval, manual decisions and timeout outcomes.
//
// Each submission is a single-writer resource: every mutating operation
// acquires the submission's mutex, so decision-vs-timeout races resolve
// as "first state-mutating operation wins". Operations on different
// submissions proceed in parallel.
type ApprovalPipeline struct {
	store     ports.SubmissionStore
	workflows ports.WorkflowProvider
	evaluator *ConditionEvaluator
	scheduler ports.TimeoutScheduler
	eventBus  ports.EventPublisher

	locks submissionLocks
}

// NewApprovalPipeline creates a new ApprovalPipeline
func NewApprovalPipeline(
	store ports.SubmissionStore,
	workflows ports.WorkflowProvider,
	evaluator *ConditionEvaluator,
	scheduler ports.TimeoutScheduler,
	eventBus ports.EventPublisher,
) *ApprovalPipeline {
	return &ApprovalPipeline{
		store:     store,
		workflows: workflows,
		evaluator: evaluator,
		scheduler: scheduler,
		eventBus:  eventBus,
	}
}

// Start begins the approval lifecycle for a freshly created submission.
// The submission must be DRAFT and already inserted in the store.
//
// With no enabled approval workflow the submission is immediately terminal
// APPROVED. A workflow that fails validation is a ConfigurationError: the
// submission is held in DRAFT until the form owner corrects it.
func (p *ApprovalPipeline) Start(ctx context.Context, submissionID string) error {
	unlock := p.locks.lock(submissionID)
	defer unlock()

	sub, def, err := p.load(ctx, submissionID)
	if err != nil {
		return err
	}

	if sub.Status != models.SubmissionDraft {
		return appErrors.NewInvalidTransitionError(sub.ID,
			fmt.Sprintf("cannot start workflow from status %s", sub.Status))
	}

	// The submitted event fires once for every submission, approval or not
	p.emit(events.SubmissionSubmitted, sub)

	if def == nil || !def.Enabled || !def.RequiresApproval {
		sub.Status = models.SubmissionApproved
		sub.LastModifiedDate = time.Now().UTC()
		if err := p.store.Update(ctx, sub); err != nil {
			return err
		}
		p.emit(events.SubmissionApproved, sub)
		return nil
	}

	if err := def.Validate(); err != nil {
		// Held in DRAFT; surfaced to the form owner
		log.Printf("⚠️ Submission %s held in DRAFT: %v", sub.ID, err)
		return err
	}

	if len(def.ApprovalSteps) == 0 {
		sub.Status = models.SubmissionApproved
		sub.LastModifiedDate = time.Now().UTC()
		if err := p.store.Update(ctx, sub); err != nil {
			return err
		}
		p.emit(events.SubmissionApproved, sub)
		return nil
	}

	sub.Status = models.SubmissionInReview
	sub.CurrentStepIndex = 0
	return p.enterStep(ctx, sub, def)
}

// Decide records a manual approve/reject decision on the given step.
// Stale or duplicate decisions are rejected with InvalidTransitionError,
// never silently ignored.
func (p *ApprovalPipeline) Decide(ctx context.Context, submissionID string, stepIndex int, outcome DecisionOutcome, actorIdentity, reason string) error {
	unlock := p.locks.lock(submissionID)
	defer unlock()

	sub, def, err := p.load(ctx, submissionID)
	if err != nil {
		return err
	}

	if !sub.InFlight() {
		return appErrors.NewInvalidTransitionError(sub.ID,
			fmt.Sprintf("submission is %s, not awaiting a decision", sub.Status))
	}
	if def == nil {
		// The definition snapshot was retired or never persisted; the
		// submission cannot advance until the form owner restores it
		return appErrors.NewConfigurationError(
			fmt.Sprintf("submission %s references missing workflow definition %s", sub.ID, sub.WorkflowDefinitionID))
	}
	if stepIndex != sub.CurrentStepIndex {
		return appErrors.NewInvalidTransitionError(sub.ID,
			fmt.Sprintf("decision targets step %d but current step is %d", stepIndex, sub.CurrentStepIndex))
	}
	if sub.HasDecisionForStep(stepIndex) {
		return appErrors.NewInvalidTransitionError(sub.ID,
			fmt.Sprintf("step %d already has a decision", stepIndex))
	}

	p.scheduler.Disarm(sub.ID, stepIndex)

	now := time.Now().UTC()
	switch outcome {
	case DecisionApprove:
		sub.RecordDecision(models.StepDecision{
			StepIndex:     stepIndex,
			Outcome:       models.OutcomeApproved,
			ActorIdentity: actorIdentity,
			Timestamp:     now,
			Reason:        reason,
		})
		return p.advance(ctx, sub, def)

	case DecisionReject:
		sub.RecordDecision(models.StepDecision{
			StepIndex:     stepIndex,
			Outcome:       models.OutcomeRejected,
			ActorIdentity: actorIdentity,
			Timestamp:     now,
			Reason:        reason,
		})
		return p.reject(ctx, sub, def)

	default:
		return appErrors.NewValidationError("outcome", fmt.Sprintf("unknown decision outcome: %s", outcome))
	}
}

// OnTimeout is invoked by the timeout scheduler when a step deadline fires.
// Scheduler disarming is best-effort, so the state recheck here is the
// authoritative guard: if a decision already landed for the step, the
// firing is absorbed as a no-op.
func (p *ApprovalPipeline) OnTimeout(ctx context.Context, submissionID string, stepIndex int) error {
	unlock := p.locks.lock(submissionID)
	defer unlock()

	sub, def, err := p.load(ctx, submissionID)
	if err != nil {
		return err
	}

	// Expected scheduler race, not a caller mistake: absorb silently
	if !sub.InFlight() || stepIndex != sub.CurrentStepIndex || sub.HasDecisionForStep(stepIndex) {
		return nil
	}

	if def == nil {
		return appErrors.NewConfigurationError(
			fmt.Sprintf("submission %s references missing workflow definition %s", sub.ID, sub.WorkflowDefinitionID))
	}

	step := def.StepAt(stepIndex)
	if step == nil {
		return nil
	}

	now := time.Now().UTC()
	p.emit(events.SubmissionTimedOut, sub)

	switch step.TimeoutAction {
	case models.TimeoutApprove:
		sub.RecordDecision(models.StepDecision{
			StepIndex:     stepIndex,
			Outcome:       models.OutcomeTimedOutApproved,
			ActorIdentity: SystemActor,
			Timestamp:     now,
			Reason:        "step timed out",
		})
		return p.advance(ctx, sub, def)

	case models.TimeoutReject:
		sub.RecordDecision(models.StepDecision{
			StepIndex:     stepIndex,
			Outcome:       models.OutcomeTimedOutRejected,
			ActorIdentity: SystemActor,
			Timestamp:     now,
			Reason:        "step timed out",
		})
		return p.reject(ctx, sub, def)

	case models.TimeoutEscalate:
		// Lateral move within the same step: swap the approver,
		// re-arm a fresh timer, do not advance the index
		sub.RecordDecision(models.StepDecision{
			StepIndex:     stepIndex,
			Outcome:       models.OutcomeEscalated,
			ActorIdentity: SystemActor,
			Timestamp:     now,
			Reason:        fmt.Sprintf("escalated to %s", step.EscalateToIdentity),
		})
		sub.Status = models.SubmissionEscalated
		sub.CurrentApproverIdentity = step.EscalateToIdentity
		if err := p.store.Update(ctx, sub); err != nil {
			return err
		}
		if d, ok := step.TimeoutDuration(); ok {
			p.scheduler.Arm(sub.ID, stepIndex, now.Add(d))
		}
		p.emit(events.SubmissionEscalated, sub)
		log.Printf("⏰ Submission %s step %d escalated to %s", sub.ID, stepIndex, step.EscalateToIdentity)
		return nil

	default:
		// No timeout action configured; nothing to apply
		return nil
	}
}

// Expire marks a stale non-terminal submission EXPIRED.
// Used by the archive sweep; a submission that already reached a terminal
// status is left untouched.
func (p *ApprovalPipeline) Expire(ctx context.Context, submissionID string) error {
	unlock := p.locks.lock(submissionID)
	defer unlock()

	sub, _, err := p.load(ctx, submissionID)
	if err != nil {
		return err
	}
	if sub.IsTerminal() {
		return nil
	}

	if sub.InFlight() {
		p.scheduler.Disarm(sub.ID, sub.CurrentStepIndex)
	}

	sub.Status = models.SubmissionExpired
	sub.LastModifiedDate = time.Now().UTC()
	return p.store.Update(ctx, sub)
}

// enterStep processes the submission's current step: auto-approve when the
// step's conditions all hold against the data (no timer is ever armed for
// such a step), otherwise wait on the step's approver with an optional
// timeout. Chains of auto-approving steps collapse in a single pass.
func (p *ApprovalPipeline) enterStep(ctx context.Context, sub *models.Submission, def *models.WorkflowDefinition) error {
	for {
		step := def.StepAt(sub.CurrentStepIndex)
		if step == nil {
			return appErrors.NewInternalError(
				fmt.Sprintf("submission %s points at missing step %d", sub.ID, sub.CurrentStepIndex), nil)
		}

		if len(step.AutoApproveConditions) > 0 && p.evaluator.EvaluateAll(step.AutoApproveConditions, sub.Data) {
			sub.RecordDecision(models.StepDecision{
				StepIndex:     sub.CurrentStepIndex,
				Outcome:       models.OutcomeAutoApproved,
				ActorIdentity: SystemActor,
				Timestamp:     time.Now().UTC(),
			})
			if def.IsLastStep(sub.CurrentStepIndex) {
				return p.approveTerminal(ctx, sub)
			}
			sub.CurrentStepIndex++
			continue
		}

		sub.Status = models.SubmissionInReview
		sub.CurrentApproverIdentity = step.ApproverIdentity
		sub.LastModifiedDate = time.Now().UTC()
		if err := p.store.Update(ctx, sub); err != nil {
			return err
		}
		if d, ok := step.TimeoutDuration(); ok {
			p.scheduler.Arm(sub.ID, sub.CurrentStepIndex, time.Now().UTC().Add(d))
		}
		return nil
	}
}

// advance moves past an approved step: terminal APPROVED on the last step,
// otherwise enter the next one
func (p *ApprovalPipeline) advance(ctx context.Context, sub *models.Submission, def *models.WorkflowDefinition) error {
	if def.IsLastStep(sub.CurrentStepIndex) {
		return p.approveTerminal(ctx, sub)
	}
	sub.CurrentStepIndex++
	return p.enterStep(ctx, sub, def)
}

func (p *ApprovalPipeline) approveTerminal(ctx context.Context, sub *models.Submission) error {
	sub.Status = models.SubmissionApproved
	sub.CurrentApproverIdentity = ""
	sub.LastModifiedDate = time.Now().UTC()
	if err := p.store.Update(ctx, sub); err != nil {
		return err
	}
	p.emit(events.SubmissionApproved, sub)
	log.Printf("✅ Submission %s approved", sub.ID)
	return nil
}

// reject finalizes a rejection. With AllowResubmission the submission
// returns to DRAFT instead of terminal REJECTED; this is a policy switch,
// not a distinct status.
func (p *ApprovalPipeline) reject(ctx context.Context, sub *models.Submission, def *models.WorkflowDefinition) error {
	if def.Settings.AllowResubmission {
		sub.Status = models.SubmissionDraft
		sub.CurrentStepIndex = 0
	} else {
		sub.Status = models.SubmissionRejected
	}
	sub.CurrentApproverIdentity = ""
	sub.LastModifiedDate = time.Now().UTC()
	if err := p.store.Update(ctx, sub); err != nil {
		return err
	}
	p.emit(events.SubmissionRejected, sub)
	log.Printf("🚫 Submission %s rejected (resubmission allowed: %v)", sub.ID, def.Settings.AllowResubmission)
	return nil
}

// load fetches the submission and its workflow snapshot.
// A submission with no workflow reference returns a nil definition.
func (p *ApprovalPipeline) load(ctx context.Context, submissionID string) (*models.Submission, *models.WorkflowDefinition, error) {
	sub, err := p.store.Get(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	if sub == nil {
		return nil, nil, appErrors.NewNotFoundError("Submission", submissionID)
	}

	if sub.WorkflowDefinitionID == "" {
		return sub, nil, nil
	}

	def, err := p.workflows.GetByID(ctx, sub.WorkflowDefinitionID)
	if err != nil {
		return nil, nil, err
	}
	return sub, def, nil
}

// emit publishes a lifecycle event carrying a snapshot clone.
// Handler errors never fail the state transition that triggered them.
func (p *ApprovalPipeline) emit(eventType events.EventType, sub *models.Submission) {
	payload := SubmissionEventPayload{Submission: sub.Clone()}
	if err := p.eventBus.Publish(context.Background(), eventType, payload); err != nil {
		log.Printf("⚠️ Event %s for submission %s: %v", eventType, sub.ID, err)
	}
}

// submissionLocks serializes mutating operations per submission ID.
// Entries are reference-counted and evicted once the last holder
// releases, so the map stays bounded by in-progress operations rather
// than growing with every submission ever touched.
type submissionLocks struct {
	mu    sync.Mutex
	locks map[string]*submissionLock
}

type submissionLock struct {
	mu   sync.Mutex
	refs int
}

func (l *submissionLocks) lock(id string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*submissionLock)
	}
	entry, ok := l.locks[id]
	if !ok {
		entry = &submissionLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// held reports the number of live lock entries, for tests
func (l *submissionLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
