package models

import (
	"time"
)

// SubmissionStatus is the lifecycle state of a submission
type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "DRAFT"
	SubmissionInReview  SubmissionStatus = "IN_REVIEW"
	SubmissionApproved  SubmissionStatus = "APPROVED"
	SubmissionRejected  SubmissionStatus = "REJECTED"
	SubmissionEscalated SubmissionStatus = "ESCALATED"
	SubmissionExpired   SubmissionStatus = "EXPIRED"
)

// StepOutcome records how a single approval step concluded
type StepOutcome string

const (
	OutcomeAutoApproved     StepOutcome = "auto_approved"
	OutcomeApproved         StepOutcome = "approved"
	OutcomeRejected         StepOutcome = "rejected"
	OutcomeTimedOutApproved StepOutcome = "timed_out_approved"
	OutcomeTimedOutRejected StepOutcome = "timed_out_rejected"
	OutcomeEscalated        StepOutcome = "escalated"
)

// StepDecision is one append-only audit entry in a submission's history
type StepDecision struct {
	StepIndex     int         `json:"step_index"`
	Outcome       StepOutcome `json:"outcome"`
	ActorIdentity string      `json:"actor_identity"`
	Timestamp     time.Time   `json:"timestamp"`
	Reason        string      `json:"reason,omitempty"`
}

// ActionOccurrence is one entry in the dispatch ledger: the (action, trigger)
// pairs that have already fired for a submission
type ActionOccurrence struct {
	ActionID string        `json:"action_id"`
	Trigger  ActionTrigger `json:"trigger"`
}

// Submission is the entity the workflow engine operates on.
// It is owned exclusively by the approval pipeline; all mutations
// are serialized per submission.
type Submission struct {
	ID                   string                 `json:"id"`
	FormID               string                 `json:"form_id"`
	Data                 map[string]interface{} `json:"data"`
	SubmitterEmail       string                 `json:"submitter_email,omitempty"`
	WorkflowDefinitionID string                 `json:"workflow_definition_id,omitempty"`
	Status               SubmissionStatus       `json:"status"`

	// CurrentStepIndex is meaningful only while IN_REVIEW or ESCALATED
	CurrentStepIndex int `json:"current_step_index"`

	// CurrentApproverIdentity tracks who the active step is waiting on;
	// escalation swaps it without advancing the step index
	CurrentApproverIdentity string `json:"current_approver_identity,omitempty"`

	StepHistory  []StepDecision     `json:"step_history,omitempty"`
	FiredActions []ActionOccurrence `json:"fired_actions,omitempty"`

	// PriorSubmissionID links a resubmission to the attempt it replaces
	PriorSubmissionID string `json:"prior_submission_id,omitempty"`

	CreatedDate      time.Time `json:"created_date"`
	LastModifiedDate time.Time `json:"last_modified_date"`
}

// IsTerminal reports whether the submission reached a final status
func (s *Submission) IsTerminal() bool {
	switch s.Status {
	case SubmissionApproved, SubmissionRejected, SubmissionExpired:
		return true
	}
	return false
}

// InFlight reports whether the submission is awaiting a step decision
func (s *Submission) InFlight() bool {
	return s.Status == SubmissionInReview || s.Status == SubmissionEscalated
}

// HasDecisionForStep reports whether a concluding decision exists for the
// step. Escalations do not count: they are lateral moves within the step,
// and the step remains open afterwards.
func (s *Submission) HasDecisionForStep(stepIndex int) bool {
	for _, d := range s.StepHistory {
		if d.StepIndex == stepIndex && d.Outcome != OutcomeEscalated {
			return true
		}
	}
	return false
}

// ActionFired reports whether the (action, trigger) pair is in the ledger
func (s *Submission) ActionFired(actionID string, trigger ActionTrigger) bool {
	for _, f := range s.FiredActions {
		if f.ActionID == actionID && f.Trigger == trigger {
			return true
		}
	}
	return false
}

// RecordDecision appends to the audit trail and bumps the modified timestamp
func (s *Submission) RecordDecision(d StepDecision) {
	s.StepHistory = append(s.StepHistory, d)
	s.LastModifiedDate = d.Timestamp
}

// Clone returns a deep copy, used for event payload snapshots so that
// subscribers never observe a submission mid-mutation
func (s *Submission) Clone() *Submission {
	cp := *s

	if s.Data != nil {
		cp.Data = make(map[string]interface{}, len(s.Data))
		for k, v := range s.Data {
			cp.Data[k] = v
		}
	}

	cp.StepHistory = append([]StepDecision(nil), s.StepHistory...)
	cp.FiredActions = append([]ActionOccurrence(nil), s.FiredActions...)

	return &cp
}
