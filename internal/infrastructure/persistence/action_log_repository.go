package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/formsage/backend/internal/domain/models"
)

const tableActionLog = "action_log"

// Action execution statuses
const (
	ActionStatusSuccess = "SUCCESS"
	ActionStatusFailed  = "FAILED"
)

// ActionLogEntry is one recorded action execution outcome
type ActionLogEntry struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	ActionID     string    `json:"action_id"`
	Trigger      string    `json:"trigger"`
	Status       string    `json:"status"`
	Attempts     int       `json:"attempts"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedDate  time.Time `json:"created_date"`
}

// ActionLogRepository records action execution outcomes for inspection
type ActionLogRepository struct {
	db *sql.DB
}

// NewActionLogRepository creates a new ActionLogRepository
func NewActionLogRepository(db *sql.DB) *ActionLogRepository {
	return &ActionLogRepository{db: db}
}

// RecordSuccess logs a delivered action
func (r *ActionLogRepository) RecordSuccess(ctx context.Context, submissionID, actionID string, trigger models.ActionTrigger, attempts int) error {
	return r.record(ctx, submissionID, actionID, trigger, ActionStatusSuccess, attempts, "")
}

// RecordFailure logs an action that exhausted its retries
func (r *ActionLogRepository) RecordFailure(ctx context.Context, submissionID, actionID string, trigger models.ActionTrigger, attempts int, lastErr string) error {
	return r.record(ctx, submissionID, actionID, trigger, ActionStatusFailed, attempts, lastErr)
}

func (r *ActionLogRepository) record(ctx context.Context, submissionID, actionID string, trigger models.ActionTrigger, status string, attempts int, errMsg string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, submission_id, action_id, trigger_type, status, attempts, error_message, created_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, NOW())
	`, tableActionLog)

	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), submissionID, actionID, string(trigger), status, attempts, nullable(errMsg))
	if err != nil {
		return fmt.Errorf("failed to record action outcome: %w", err)
	}
	return nil
}

// ListBySubmission returns the execution log for one submission, newest first
func (r *ActionLogRepository) ListBySubmission(ctx context.Context, submissionID string) ([]ActionLogEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, submission_id, action_id, trigger_type, status, attempts, error_message, created_date
		FROM %s WHERE submission_id = ?
		ORDER BY created_date DESC
	`, tableActionLog)

	rows, err := r.db.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query action log: %w", err)
	}
	defer rows.Close()

	entries := make([]ActionLogEntry, 0)
	for rows.Next() {
		var e ActionLogEntry
		var errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.SubmissionID, &e.ActionID, &e.Trigger, &e.Status, &e.Attempts, &errMsg, &e.CreatedDate); err != nil {
			return nil, err
		}
		e.ErrorMessage = errMsg.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
