package bootstrap

import (
	"log"

	"github.com/formsage/backend/internal/infrastructure/database"
)

// Core table DDL. CREATE TABLE IF NOT EXISTS keeps startup idempotent;
// schema migrations beyond additive startup DDL are handled out of band.
var tableDDL = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		password VARCHAR(255) NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_date DATETIME NOT NULL,
		last_login DATETIME NULL
	)`,

	// Definitions are immutable snapshots: every save inserts a new row
	// and demotes the form's prior current row. Superseded rows stay
	// resolvable by ID so in-flight submissions never see an edit.
	`CREATE TABLE IF NOT EXISTS form_workflows (
		id VARCHAR(36) PRIMARY KEY,
		form_id VARCHAR(36) NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		definition JSON NOT NULL,
		last_modified DATETIME NOT NULL,
		is_current BOOLEAN NOT NULL DEFAULT TRUE,
		KEY idx_workflows_form_current (form_id, is_current)
	)`,

	`CREATE TABLE IF NOT EXISTS submissions (
		id VARCHAR(36) PRIMARY KEY,
		form_id VARCHAR(36) NOT NULL,
		data JSON NOT NULL,
		submitter_email VARCHAR(255) NULL,
		workflow_id VARCHAR(36) NULL,
		status VARCHAR(20) NOT NULL,
		current_step_index INT NOT NULL DEFAULT 0,
		current_approver VARCHAR(255) NULL,
		step_history JSON NOT NULL,
		prior_submission_id VARCHAR(36) NULL,
		created_date DATETIME NOT NULL,
		last_modified_date DATETIME NOT NULL,
		KEY idx_submissions_form (form_id),
		KEY idx_submissions_approver (current_approver, status),
		KEY idx_submissions_modified (status, last_modified_date)
	)`,

	// The dispatch ledger. The primary key is the at-most-once guarantee:
	// INSERT IGNORE succeeds for exactly one claimant per occurrence.
	`CREATE TABLE IF NOT EXISTS fired_actions (
		submission_id VARCHAR(36) NOT NULL,
		action_id VARCHAR(64) NOT NULL,
		trigger_type VARCHAR(20) NOT NULL,
		fired_date DATETIME NOT NULL,
		PRIMARY KEY (submission_id, action_id, trigger_type)
	)`,

	`CREATE TABLE IF NOT EXISTS action_log (
		id VARCHAR(36) PRIMARY KEY,
		submission_id VARCHAR(36) NOT NULL,
		action_id VARCHAR(64) NOT NULL,
		trigger_type VARCHAR(20) NOT NULL,
		status VARCHAR(10) NOT NULL,
		attempts INT NOT NULL,
		error_message TEXT NULL,
		created_date DATETIME NOT NULL,
		KEY idx_action_log_submission (submission_id, created_date)
	)`,
}

// InitializeSchema creates the core tables
func InitializeSchema(db *database.Connection) error {
	log.Println("🔧 Initializing database schema...")

	for _, ddl := range tableDDL {
		if _, err := db.DB().Exec(ddl); err != nil {
			return err
		}
	}

	log.Printf("✅ Schema ready (%d tables)", len(tableDDL))
	return nil
}
