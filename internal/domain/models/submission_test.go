package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubmission_StatusPredicates(t *testing.T) {
	for status, terminal := range map[SubmissionStatus]bool{
		SubmissionDraft:     false,
		SubmissionInReview:  false,
		SubmissionEscalated: false,
		SubmissionApproved:  true,
		SubmissionRejected:  true,
		SubmissionExpired:   true,
	} {
		sub := Submission{Status: status}
		assert.Equal(t, terminal, sub.IsTerminal(), "status %s", status)
	}

	assert.True(t, (&Submission{Status: SubmissionInReview}).InFlight())
	assert.True(t, (&Submission{Status: SubmissionEscalated}).InFlight())
	assert.False(t, (&Submission{Status: SubmissionDraft}).InFlight())
}

func TestSubmission_HasDecisionForStep(t *testing.T) {
	sub := Submission{StepHistory: []StepDecision{
		{StepIndex: 0, Outcome: OutcomeEscalated},
		{StepIndex: 1, Outcome: OutcomeApproved},
	}}

	// Escalations are lateral moves, not step decisions
	assert.False(t, sub.HasDecisionForStep(0))
	assert.True(t, sub.HasDecisionForStep(1))
	assert.False(t, sub.HasDecisionForStep(2))
}

func TestSubmission_ActionFired(t *testing.T) {
	sub := Submission{FiredActions: []ActionOccurrence{
		{ActionID: "a1", Trigger: TriggerApproved},
	}}

	assert.True(t, sub.ActionFired("a1", TriggerApproved))
	assert.False(t, sub.ActionFired("a1", TriggerRejected), "same action, different trigger is a new occurrence")
	assert.False(t, sub.ActionFired("a2", TriggerApproved))
}

func TestSubmission_CloneIsDeep(t *testing.T) {
	orig := &Submission{
		ID:     "sub-1",
		Data:   map[string]interface{}{"k": "v"},
		Status: SubmissionInReview,
		StepHistory: []StepDecision{
			{StepIndex: 0, Outcome: OutcomeApproved, Timestamp: time.Now()},
		},
		FiredActions: []ActionOccurrence{{ActionID: "a1", Trigger: TriggerImmediate}},
	}

	cp := orig.Clone()
	cp.Data["k"] = "mutated"
	cp.StepHistory[0].Outcome = OutcomeRejected
	cp.FiredActions[0].ActionID = "a2"
	cp.Status = SubmissionRejected

	assert.Equal(t, "v", orig.Data["k"])
	assert.Equal(t, OutcomeApproved, orig.StepHistory[0].Outcome)
	assert.Equal(t, "a1", orig.FiredActions[0].ActionID)
	assert.Equal(t, SubmissionInReview, orig.Status)
}
