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

func TestWorkflowRepository_SaveSupersedesCurrent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewWorkflowRepository(db)
	def := &models.WorkflowDefinition{
		ID:           "wf-2",
		FormID:       "form-1",
		Enabled:      true,
		LastModified: time.Now().UTC(),
	}

	// The prior current row is demoted, never updated or removed; the new
	// snapshot is inserted as its own row
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE form_workflows SET is_current = 0 WHERE form_id").
		WithArgs(def.FormID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO form_workflows").
		WithArgs(def.ID, def.FormID, def.Enabled, sqlmock.AnyArg(), def.LastModified).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.Save(context.Background(), def))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepository_DeleteRetiresSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewWorkflowRepository(db)

	// Retiring clears is_current; the row itself stays resolvable by ID
	mock.ExpectExec("UPDATE form_workflows SET is_current = 0 WHERE id").
		WithArgs("wf-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(context.Background(), "wf-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepository_GetByFormRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewWorkflowRepository(db)

	body := `{
		"id": "wf-1", "form_id": "form-1", "enabled": true, "requires_approval": true,
		"approval_steps": [{"approver_identity": "manager@example.com",
			"timeout_hours": 48, "timeout_action": "escalate", "escalate_to_identity": "director@example.com"}],
		"settings": {"allow_resubmission": true}
	}`

	mock.ExpectQuery("SELECT definition FROM form_workflows WHERE form_id").
		WithArgs("form-1").
		WillReturnRows(sqlmock.NewRows([]string{"definition"}).AddRow([]byte(body)))

	def, err := repo.GetByForm(context.Background(), "form-1")
	require.NoError(t, err)
	require.NotNil(t, def)

	assert.Equal(t, "wf-1", def.ID)
	require.Len(t, def.ApprovalSteps, 1)
	assert.Equal(t, "manager@example.com", def.ApprovalSteps[0].ApproverIdentity)
	d, ok := def.ApprovalSteps[0].TimeoutDuration()
	assert.True(t, ok)
	assert.Equal(t, 48*time.Hour, d)
	assert.Equal(t, models.TimeoutEscalate, def.ApprovalSteps[0].TimeoutAction)
	assert.True(t, def.Settings.AllowResubmission)
}

func TestWorkflowRepository_GetByIDMissingReturnsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewWorkflowRepository(db)

	mock.ExpectQuery("SELECT definition FROM form_workflows WHERE id").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"definition"}))

	def, err := repo.GetByID(context.Background(), "ghost")
	assert.NoError(t, err)
	assert.Nil(t, def)
}
