package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/formsage/backend/internal/domain/models"
)

const tableWorkflows = "form_workflows"

// WorkflowRepository persists workflow definitions as immutable snapshots.
// Every save inserts a new row; superseded rows are kept so in-flight
// submissions keep resolving the exact definition they started under.
// is_current marks the one definition new submissions for a form pick up.
type WorkflowRepository struct {
	db *sql.DB
}

// NewWorkflowRepository creates a new WorkflowRepository
func NewWorkflowRepository(db *sql.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Save inserts the definition as the form's current snapshot, demoting
// any prior current row. Prior rows are never mutated or removed.
func (r *WorkflowRepository) Save(ctx context.Context, def *models.WorkflowDefinition) error {
	body, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow definition: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin workflow save: %w", err)
	}
	defer tx.Rollback()

	demote := fmt.Sprintf("UPDATE %s SET is_current = 0 WHERE form_id = ? AND is_current = 1", tableWorkflows)
	if _, err := tx.ExecContext(ctx, demote, def.FormID); err != nil {
		return fmt.Errorf("failed to demote current workflow: %w", err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (id, form_id, enabled, definition, last_modified, is_current)
		VALUES (?, ?, ?, ?, ?, 1)
	`, tableWorkflows)
	if _, err := tx.ExecContext(ctx, insert, def.ID, def.FormID, def.Enabled, body, def.LastModified); err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return tx.Commit()
}

// GetByID fetches a definition snapshot, current or superseded, nil when
// absent. Submissions resolve through here, so an edited or retired
// workflow never changes what an in-flight submission sees.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := fmt.Sprintf("SELECT definition FROM %s WHERE id = ? LIMIT 1", tableWorkflows)
	return r.scanDefinition(r.db.QueryRowContext(ctx, query, id))
}

// GetByForm fetches the form's current definition, nil when the form
// has none
func (r *WorkflowRepository) GetByForm(ctx context.Context, formID string) (*models.WorkflowDefinition, error) {
	query := fmt.Sprintf("SELECT definition FROM %s WHERE form_id = ? AND is_current = 1 LIMIT 1", tableWorkflows)
	return r.scanDefinition(r.db.QueryRowContext(ctx, query, formID))
}

// Delete retires a definition: it stops being the form's current
// workflow but the row stays resolvable by ID for in-flight submissions.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE %s SET is_current = 0 WHERE id = ?", tableWorkflows)
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to retire workflow: %w", err)
	}
	return nil
}

func (r *WorkflowRepository) scanDefinition(row *sql.Row) (*models.WorkflowDefinition, error) {
	var body []byte
	if err := row.Scan(&body); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal(body, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow definition: %w", err)
	}
	return &def, nil
}
