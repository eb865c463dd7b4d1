package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formsage/backend/internal/domain/models"
)

func TestSubmissionRepository_ClaimAction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewSubmissionRepository(db)

	// First claim wins: one row inserted
	mock.ExpectExec("INSERT IGNORE INTO fired_actions").
		WithArgs("sub-1", "a1", "approved").
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.ClaimAction(context.Background(), "sub-1", "a1", models.TriggerApproved)
	assert.NoError(t, err)
	assert.True(t, claimed)

	// Second claim for the same occurrence: IGNORE swallows the duplicate,
	// zero rows affected
	mock.ExpectExec("INSERT IGNORE INTO fired_actions").
		WithArgs("sub-1", "a1", "approved").
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err = repo.ClaimAction(context.Background(), "sub-1", "a1", models.TriggerApproved)
	assert.NoError(t, err)
	assert.False(t, claimed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepository_GetHydratesJSONAndLedger(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewSubmissionRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	columns := []string{"id", "form_id", "data", "submitter_email", "workflow_id", "status",
		"current_step_index", "current_approver", "step_history", "prior_submission_id",
		"created_date", "last_modified_date"}

	mock.ExpectQuery(`(?s)SELECT .+ FROM submissions WHERE id = \?`).
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"sub-1", "form-1",
			[]byte(`{"amount": 1500}`),
			"alice@example.com", "wf-1", "IN_REVIEW",
			1, "cfo@example.com",
			[]byte(`[{"step_index":0,"outcome":"auto_approved","actor_identity":"system","timestamp":"2026-01-02T03:04:05Z"}]`),
			nil, now, now,
		))

	mock.ExpectQuery("SELECT action_id, trigger_type FROM fired_actions").
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"action_id", "trigger_type"}).
			AddRow("a1", "immediate"))

	sub, err := repo.Get(context.Background(), "sub-1")
	require.NoError(t, err)
	require.NotNil(t, sub)

	assert.Equal(t, models.SubmissionInReview, sub.Status)
	assert.Equal(t, 1, sub.CurrentStepIndex)
	assert.Equal(t, "cfo@example.com", sub.CurrentApproverIdentity)
	assert.Equal(t, float64(1500), sub.Data["amount"])
	require.Len(t, sub.StepHistory, 1)
	assert.Equal(t, models.OutcomeAutoApproved, sub.StepHistory[0].Outcome)
	assert.True(t, sub.ActionFired("a1", models.TriggerImmediate))
	assert.Empty(t, sub.PriorSubmissionID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepository_GetMissingReturnsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewSubmissionRepository(db)

	mock.ExpectQuery(`(?s)SELECT .+ FROM submissions WHERE id = \?`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	sub, err := repo.Get(context.Background(), "ghost")
	assert.NoError(t, err)
	assert.Nil(t, sub)
}

func TestSubmissionRepository_UpdateMissingFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewSubmissionRepository(db)

	mock.ExpectExec("UPDATE submissions SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	sub := &models.Submission{ID: "ghost", Status: models.SubmissionApproved}
	err = repo.Update(context.Background(), sub)
	assert.Error(t, err)
}
