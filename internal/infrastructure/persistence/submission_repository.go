package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/formsage/backend/internal/domain/models"
)

const (
	tableSubmissions = "submissions"
	tableFiredAction = "fired_actions"
)

// SubmissionRepository persists submissions in MySQL.
// Form data and step history are stored as JSON columns; the dispatch
// ledger lives in its own table so claims can ride on a primary-key
// uniqueness guarantee.
type SubmissionRepository struct {
	db *sql.DB
}

// NewSubmissionRepository creates a new SubmissionRepository
func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Insert stores a new submission
func (r *SubmissionRepository) Insert(ctx context.Context, sub *models.Submission) error {
	dataJSON, err := json.Marshal(sub.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal submission data: %w", err)
	}
	historyJSON, err := json.Marshal(sub.StepHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal step history: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, form_id, data, submitter_email, workflow_id, status,
			current_step_index, current_approver, step_history, prior_submission_id,
			created_date, last_modified_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tableSubmissions)

	_, err = r.db.ExecContext(ctx, query,
		sub.ID, sub.FormID, dataJSON, nullable(sub.SubmitterEmail), nullable(sub.WorkflowDefinitionID),
		string(sub.Status), sub.CurrentStepIndex, nullable(sub.CurrentApproverIdentity), historyJSON,
		nullable(sub.PriorSubmissionID), sub.CreatedDate, sub.LastModifiedDate)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

// Get fetches a submission with its dispatch ledger, nil when absent
func (r *SubmissionRepository) Get(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf(`
		SELECT id, form_id, data, submitter_email, workflow_id, status,
			current_step_index, current_approver, step_history, prior_submission_id,
			created_date, last_modified_date
		FROM %s WHERE id = ? LIMIT 1
	`, tableSubmissions)

	sub, err := r.scanSubmission(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if err := r.loadFiredActions(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Update persists submission state. The dispatch ledger is append-only
// and written exclusively through ClaimAction.
func (r *SubmissionRepository) Update(ctx context.Context, sub *models.Submission) error {
	dataJSON, err := json.Marshal(sub.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal submission data: %w", err)
	}
	historyJSON, err := json.Marshal(sub.StepHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal step history: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s SET data = ?, status = ?, current_step_index = ?, current_approver = ?,
			step_history = ?, last_modified_date = ?
		WHERE id = ?
	`, tableSubmissions)

	result, err := r.db.ExecContext(ctx, query,
		dataJSON, string(sub.Status), sub.CurrentStepIndex, nullable(sub.CurrentApproverIdentity),
		historyJSON, sub.LastModifiedDate, sub.ID)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("submission %s not found", sub.ID)
	}
	return nil
}

// ClaimAction atomically records an (action, trigger) occurrence.
// The ledger table's primary key is (submission_id, action_id, trigger_type),
// so INSERT IGNORE succeeds for exactly one claimant; losers see zero
// affected rows.
func (r *SubmissionRepository) ClaimAction(ctx context.Context, submissionID, actionID string, trigger models.ActionTrigger) (bool, error) {
	query := fmt.Sprintf(`
		INSERT IGNORE INTO %s (submission_id, action_id, trigger_type, fired_date)
		VALUES (?, ?, ?, NOW())
	`, tableFiredAction)

	result, err := r.db.ExecContext(ctx, query, submissionID, actionID, string(trigger))
	if err != nil {
		return false, fmt.Errorf("failed to claim action: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListPendingForApprover returns in-flight submissions waiting on the approver
func (r *SubmissionRepository) ListPendingForApprover(ctx context.Context, approverIdentity string) ([]*models.Submission, error) {
	query := fmt.Sprintf(`
		SELECT id, form_id, data, submitter_email, workflow_id, status,
			current_step_index, current_approver, step_history, prior_submission_id,
			created_date, last_modified_date
		FROM %s
		WHERE current_approver = ? AND status IN (?, ?)
		ORDER BY created_date ASC
	`, tableSubmissions)

	rows, err := r.db.QueryContext(ctx, query, approverIdentity,
		string(models.SubmissionInReview), string(models.SubmissionEscalated))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending submissions: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// ListStale returns non-terminal submissions last modified before cutoff
func (r *SubmissionRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Submission, error) {
	query := fmt.Sprintf(`
		SELECT id, form_id, data, submitter_email, workflow_id, status,
			current_step_index, current_approver, step_history, prior_submission_id,
			created_date, last_modified_date
		FROM %s
		WHERE status NOT IN (?, ?, ?) AND last_modified_date < ?
		ORDER BY last_modified_date ASC
		LIMIT ?
	`, tableSubmissions)

	rows, err := r.db.QueryContext(ctx, query,
		string(models.SubmissionApproved), string(models.SubmissionRejected), string(models.SubmissionExpired),
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale submissions: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// ListInFlight returns every IN_REVIEW or ESCALATED submission.
// Used at startup to re-arm timeout deadlines.
func (r *SubmissionRepository) ListInFlight(ctx context.Context) ([]*models.Submission, error) {
	query := fmt.Sprintf(`
		SELECT id, form_id, data, submitter_email, workflow_id, status,
			current_step_index, current_approver, step_history, prior_submission_id,
			created_date, last_modified_date
		FROM %s
		WHERE status IN (?, ?)
	`, tableSubmissions)

	rows, err := r.db.QueryContext(ctx, query,
		string(models.SubmissionInReview), string(models.SubmissionEscalated))
	if err != nil {
		return nil, fmt.Errorf("failed to query in-flight submissions: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *SubmissionRepository) scanSubmission(row rowScanner) (*models.Submission, error) {
	var sub models.Submission
	var dataJSON, historyJSON []byte
	var submitterEmail, workflowID, approver, priorID sql.NullString

	err := row.Scan(&sub.ID, &sub.FormID, &dataJSON, &submitterEmail, &workflowID,
		&sub.Status, &sub.CurrentStepIndex, &approver, &historyJSON, &priorID,
		&sub.CreatedDate, &sub.LastModifiedDate)
	if err != nil {
		return nil, err
	}

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &sub.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal submission data: %w", err)
		}
	}
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &sub.StepHistory); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step history: %w", err)
		}
	}

	sub.SubmitterEmail = submitterEmail.String
	sub.WorkflowDefinitionID = workflowID.String
	sub.CurrentApproverIdentity = approver.String
	sub.PriorSubmissionID = priorID.String
	return &sub, nil
}

func (r *SubmissionRepository) collect(rows *sql.Rows) ([]*models.Submission, error) {
	subs := make([]*models.Submission, 0)
	for rows.Next() {
		sub, err := r.scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (r *SubmissionRepository) loadFiredActions(ctx context.Context, sub *models.Submission) error {
	query := fmt.Sprintf(`
		SELECT action_id, trigger_type FROM %s WHERE submission_id = ?
	`, tableFiredAction)

	rows, err := r.db.QueryContext(ctx, query, sub.ID)
	if err != nil {
		return fmt.Errorf("failed to query fired actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var occ models.ActionOccurrence
		var trigger string
		if err := rows.Scan(&occ.ActionID, &trigger); err != nil {
			return err
		}
		occ.Trigger = models.ActionTrigger(trigger)
		sub.FiredActions = append(sub.FiredActions, occ)
	}
	return rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
