package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/formsage/backend/pkg/errors"
)

// ConditionOperator identifies how a condition compares a field against a value
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "equals"
	OpNotEquals   ConditionOperator = "not_equals"
	OpContains    ConditionOperator = "contains"
	OpGreaterThan ConditionOperator = "greater_than"
	OpLessThan    ConditionOperator = "less_than"
	OpIsEmpty     ConditionOperator = "is_empty"
	OpIsNotEmpty  ConditionOperator = "is_not_empty"
)

// Condition is a single predicate over submission data.
// is_empty / is_not_empty ignore Value.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    interface{}       `json:"value,omitempty"`
}

// TimeoutAction determines what happens when an approval step times out
type TimeoutAction string

const (
	TimeoutApprove  TimeoutAction = "approve"
	TimeoutReject   TimeoutAction = "reject"
	TimeoutEscalate TimeoutAction = "escalate"
)

// ApprovalStep is one ordered stage of human (or auto) review.
// Timeout durations arrive from the builder UI in whole hours;
// TimeoutDuration converts to a time.Duration for the engine.
type ApprovalStep struct {
	ApproverIdentity      string        `json:"approver_identity"`
	AutoApproveConditions []Condition   `json:"auto_approve_conditions,omitempty"`
	TimeoutHours          *int          `json:"timeout_hours,omitempty"`
	TimeoutAction         TimeoutAction `json:"timeout_action,omitempty"`
	EscalateToIdentity    string        `json:"escalate_to_identity,omitempty"`
}

// TimeoutDuration returns the step's timeout as a duration.
// The second return is false when no timeout is configured.
func (s *ApprovalStep) TimeoutDuration() (time.Duration, bool) {
	if s.TimeoutHours == nil || *s.TimeoutHours <= 0 {
		return 0, false
	}
	return time.Duration(*s.TimeoutHours) * time.Hour, true
}

// ActionType identifies the kind of external side effect an action performs
type ActionType string

const (
	ActionTypeEmail   ActionType = "email"
	ActionTypeWebhook ActionType = "webhook"
	ActionTypeSlack   ActionType = "slack"
	ActionTypeCustom  ActionType = "custom"
)

// ActionTrigger is the lifecycle event an action listens for
type ActionTrigger string

const (
	TriggerImmediate ActionTrigger = "immediate"
	TriggerApproved  ActionTrigger = "approved"
	TriggerRejected  ActionTrigger = "rejected"
	TriggerTimeout   ActionTrigger = "timeout"
)

// ActionConfig is the closed set of per-type action payloads.
// Concrete sender implementations switch on the concrete type.
type ActionConfig interface {
	ActionConfigType() ActionType
}

// EmailConfig configures an email action. String fields support
// {!expr} interpolation against the submission data.
type EmailConfig struct {
	To      string `json:"to"`
	Cc      string `json:"cc,omitempty"`
	Bcc     string `json:"bcc,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (EmailConfig) ActionConfigType() ActionType { return ActionTypeEmail }

// WebhookConfig configures an HTTP webhook action
type WebhookConfig struct {
	URL     string                 `json:"url"`
	Method  string                 `json:"method,omitempty"`
	Headers map[string]string      `json:"headers,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

func (WebhookConfig) ActionConfigType() ActionType { return ActionTypeWebhook }

// SlackConfig configures a Slack incoming-webhook message
type SlackConfig struct {
	WebhookURL string `json:"webhook_url"`
	Channel    string `json:"channel,omitempty"`
	Message    string `json:"message"`
}

func (SlackConfig) ActionConfigType() ActionType { return ActionTypeSlack }

// CustomConfig is an opaque payload handed to a registered custom sender
type CustomConfig struct {
	Handler string                 `json:"handler"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

func (CustomConfig) ActionConfigType() ActionType { return ActionTypeCustom }

// PostSubmissionAction describes one side effect the dispatcher may fire
type PostSubmissionAction struct {
	ID         string        `json:"id"`
	Name       string        `json:"name,omitempty"`
	Type       ActionType    `json:"type"`
	Enabled    bool          `json:"enabled"`
	Trigger    ActionTrigger `json:"trigger"`
	Config     ActionConfig  `json:"config"`
	Conditions []Condition   `json:"conditions,omitempty"`
}

// postSubmissionActionJSON mirrors PostSubmissionAction with a raw config
// so Config can be decoded into the variant selected by Type.
type postSubmissionActionJSON struct {
	ID         string          `json:"id"`
	Name       string          `json:"name,omitempty"`
	Type       ActionType      `json:"type"`
	Enabled    bool            `json:"enabled"`
	Trigger    ActionTrigger   `json:"trigger"`
	Config     json.RawMessage `json:"config"`
	Conditions []Condition     `json:"conditions,omitempty"`
}

// UnmarshalJSON decodes the config blob into the tagged variant matching Type
func (a *PostSubmissionAction) UnmarshalJSON(data []byte) error {
	var raw postSubmissionActionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.ID = raw.ID
	a.Name = raw.Name
	a.Type = raw.Type
	a.Enabled = raw.Enabled
	a.Trigger = raw.Trigger
	a.Conditions = raw.Conditions

	if len(raw.Config) == 0 {
		a.Config = nil
		return nil
	}

	switch raw.Type {
	case ActionTypeEmail:
		var cfg EmailConfig
		if err := json.Unmarshal(raw.Config, &cfg); err != nil {
			return fmt.Errorf("invalid email action config: %w", err)
		}
		a.Config = cfg
	case ActionTypeWebhook:
		var cfg WebhookConfig
		if err := json.Unmarshal(raw.Config, &cfg); err != nil {
			return fmt.Errorf("invalid webhook action config: %w", err)
		}
		a.Config = cfg
	case ActionTypeSlack:
		var cfg SlackConfig
		if err := json.Unmarshal(raw.Config, &cfg); err != nil {
			return fmt.Errorf("invalid slack action config: %w", err)
		}
		a.Config = cfg
	case ActionTypeCustom:
		var cfg CustomConfig
		if err := json.Unmarshal(raw.Config, &cfg); err != nil {
			return fmt.Errorf("invalid custom action config: %w", err)
		}
		a.Config = cfg
	default:
		return fmt.Errorf("unknown action type: %s", raw.Type)
	}

	return nil
}

// WorkflowSettings carries the global workflow switches
type WorkflowSettings struct {
	AllowResubmission          bool `json:"allow_resubmission"`
	NotifySubmitterOnApproval  bool `json:"notify_submitter_on_approval"`
	NotifySubmitterOnRejection bool `json:"notify_submitter_on_rejection"`
	AutoArchiveAfterDays       *int `json:"auto_archive_after_days,omitempty"`
}

// WorkflowDefinition is the immutable per-form workflow configuration.
// It is produced by the builder UI and consumed read-only by the engine.
type WorkflowDefinition struct {
	ID                    string                 `json:"id"`
	FormID                string                 `json:"form_id"`
	Enabled               bool                   `json:"enabled"`
	RequiresApproval      bool                   `json:"requires_approval"`
	ApprovalSteps         []ApprovalStep         `json:"approval_steps,omitempty"`
	PostSubmissionActions []PostSubmissionAction `json:"post_submission_actions,omitempty"`
	Settings              WorkflowSettings       `json:"settings"`
	LastModified          time.Time              `json:"last_modified,omitempty"`
}

// Validate checks the configuration invariants that make a workflow startable.
// A violation is a ConfigurationError: surfaced to the form owner, and any
// submission against the workflow is held in DRAFT until it is corrected.
func (d *WorkflowDefinition) Validate() error {
	if !d.Enabled || !d.RequiresApproval {
		// Steps are ignored entirely in these modes
		return nil
	}

	for i, step := range d.ApprovalSteps {
		if step.TimeoutAction == TimeoutEscalate && step.EscalateToIdentity == "" {
			return errors.NewConfigurationError(
				fmt.Sprintf("step %d: timeout action 'escalate' requires escalate_to_identity", i))
		}
		if step.ApproverIdentity == "" && len(step.AutoApproveConditions) == 0 {
			return errors.NewConfigurationError(
				fmt.Sprintf("step %d: no approver identity and no auto-approve conditions; nobody can ever approve it", i))
		}
	}

	return nil
}

// StepAt returns the step at index, or nil when out of range
func (d *WorkflowDefinition) StepAt(index int) *ApprovalStep {
	if index < 0 || index >= len(d.ApprovalSteps) {
		return nil
	}
	return &d.ApprovalSteps[index]
}

// IsLastStep reports whether index is the final approval step
func (d *WorkflowDefinition) IsLastStep(index int) bool {
	return index == len(d.ApprovalSteps)-1
}
