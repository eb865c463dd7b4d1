package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/formsage/backend/internal/domain/events"
	"github.com/formsage/backend/internal/domain/models"
	"github.com/formsage/backend/internal/domain/ports"
	"github.com/formsage/backend/pkg/expression"
)

// submitterNoticeActionID is the ledger ID reserved for the synthesized
// submitter notification driven by the workflow settings
const submitterNoticeActionID = "__submitter_notice"

// ActionDispatcher reacts to submission lifecycle events and executes the
// matching post-submission actions at most once each.
//
// Selection runs synchronously with the event so the dispatch ledger claim
// happens before anything else; delivery runs in its own goroutine so the
// triggering state transition never blocks on external send latency.
// The ledger entry is recorded BEFORE invoking the sender: a crash after
// recording but before delivery beats a duplicate notification.
type ActionDispatcher struct {
	workflows ports.WorkflowProvider
	store     ports.SubmissionStore
	evaluator *ConditionEvaluator
	actionLog ports.ActionLogStore
	expr      *expression.Engine

	senders map[models.ActionType]ports.Sender

	maxAttempts int
	baseBackoff time.Duration

	wg sync.WaitGroup
}

// NewActionDispatcher creates a dispatcher with the default retry policy
// (3 attempts, exponential backoff starting at 500ms)
func NewActionDispatcher(
	workflows ports.WorkflowProvider,
	store ports.SubmissionStore,
	evaluator *ConditionEvaluator,
	actionLog ports.ActionLogStore,
) *ActionDispatcher {
	return &ActionDispatcher{
		workflows:   workflows,
		store:       store,
		evaluator:   evaluator,
		actionLog:   actionLog,
		expr:        expression.NewEngine(),
		senders:     make(map[models.ActionType]ports.Sender),
		maxAttempts: 3,
		baseBackoff: 500 * time.Millisecond,
	}
}

// RegisterSender installs the sender for an action type
func (d *ActionDispatcher) RegisterSender(actionType models.ActionType, sender ports.Sender) {
	d.senders[actionType] = sender
}

// SetRetryPolicy overrides attempts/backoff (tests use tiny backoffs)
func (d *ActionDispatcher) SetRetryPolicy(maxAttempts int, baseBackoff time.Duration) {
	d.maxAttempts = maxAttempts
	d.baseBackoff = baseBackoff
}

// RegisterHandlers subscribes the dispatcher to the lifecycle events that
// map onto action triggers
func (d *ActionDispatcher) RegisterHandlers(bus ports.EventPublisher) {
	for _, eventType := range []events.EventType{
		events.SubmissionSubmitted,
		events.SubmissionApproved,
		events.SubmissionRejected,
		events.SubmissionTimedOut,
	} {
		evtType := eventType
		bus.Subscribe(evtType, func(ctx context.Context, payload interface{}) error {
			eventPayload, ok := payload.(SubmissionEventPayload)
			if !ok {
				return nil
			}
			trigger := mapEventToTrigger(evtType)
			if trigger == "" {
				return nil
			}
			return d.Dispatch(ctx, eventPayload.Submission, trigger)
		})
	}
	log.Printf("✅ ActionDispatcher: registered handlers for lifecycle events")
}

// mapEventToTrigger converts lifecycle event types to action triggers
func mapEventToTrigger(eventType events.EventType) models.ActionTrigger {
	switch eventType {
	case events.SubmissionSubmitted:
		return models.TriggerImmediate
	case events.SubmissionApproved:
		return models.TriggerApproved
	case events.SubmissionRejected:
		return models.TriggerRejected
	case events.SubmissionTimedOut:
		return models.TriggerTimeout
	default:
		return ""
	}
}

// Dispatch selects and executes all actions matching the trigger for the
// submission. An action matches when it is enabled, listens on this
// trigger, its conditions all hold against the submission data, and the
// (action, trigger) pair has not already fired.
func (d *ActionDispatcher) Dispatch(ctx context.Context, sub *models.Submission, trigger models.ActionTrigger) error {
	if sub.WorkflowDefinitionID == "" {
		return nil
	}
	def, err := d.workflows.GetByID(ctx, sub.WorkflowDefinitionID)
	if err != nil {
		return fmt.Errorf("failed to load workflow for dispatch: %w", err)
	}
	if def == nil {
		return nil
	}

	for i := range def.PostSubmissionActions {
		action := def.PostSubmissionActions[i]
		if !action.Enabled || action.Trigger != trigger {
			continue
		}
		if !d.evaluator.EvaluateAll(action.Conditions, sub.Data) {
			continue
		}

		claimed, err := d.store.ClaimAction(ctx, sub.ID, action.ID, trigger)
		if err != nil {
			log.Printf("⚠️ Failed to claim action %s/%s for submission %s: %v", action.ID, trigger, sub.ID, err)
			continue
		}
		if !claimed {
			continue
		}

		d.wg.Add(1)
		go d.execute(&action, sub, trigger)
	}

	d.notifySubmitter(ctx, def, sub, trigger)
	return nil
}

// notifySubmitter fires the settings-driven submitter notification on
// approval/rejection, deduplicated through the same ledger as configured
// actions
func (d *ActionDispatcher) notifySubmitter(ctx context.Context, def *models.WorkflowDefinition, sub *models.Submission, trigger models.ActionTrigger) {
	var subject string
	switch {
	case trigger == models.TriggerApproved && def.Settings.NotifySubmitterOnApproval:
		subject = "Your submission was approved"
	case trigger == models.TriggerRejected && def.Settings.NotifySubmitterOnRejection:
		subject = "Your submission was rejected"
	default:
		return
	}

	if sub.SubmitterEmail == "" {
		return
	}

	claimed, err := d.store.ClaimAction(ctx, sub.ID, submitterNoticeActionID, trigger)
	if err != nil || !claimed {
		return
	}

	notice := &models.PostSubmissionAction{
		ID:      submitterNoticeActionID,
		Name:    "Submitter notification",
		Type:    models.ActionTypeEmail,
		Enabled: true,
		Trigger: trigger,
		Config: models.EmailConfig{
			To:      sub.SubmitterEmail,
			Subject: subject,
			Body:    fmt.Sprintf("Submission %s: %s", sub.ID, subject),
		},
	}

	d.wg.Add(1)
	go d.execute(notice, sub, trigger)
}

// execute delivers one claimed action occurrence with bounded exponential
// backoff. Exhausting retries records FAILED in the execution log; it never
// rolls back the dedup record and never affects the submission itself.
func (d *ActionDispatcher) execute(action *models.PostSubmissionAction, sub *models.Submission, trigger models.ActionTrigger) {
	defer d.wg.Done()

	ctx := context.Background()
	sender, ok := d.senders[action.Type]
	if !ok {
		log.Printf("⚠️ No sender registered for action type %s (action %s)", action.Type, action.ID)
		d.logFailure(ctx, sub.ID, action.ID, trigger, 0, fmt.Sprintf("no sender for type %s", action.Type))
		return
	}

	resolved := d.resolveConfig(action, sub)

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if err := sender.Send(ctx, resolved, sub); err != nil {
			lastErr = err
			log.Printf("⚠️ Action %s/%s for submission %s failed (attempt %d/%d): %v",
				action.ID, trigger, sub.ID, attempt, d.maxAttempts, err)
			if attempt < d.maxAttempts {
				time.Sleep(d.baseBackoff << (attempt - 1))
			}
			continue
		}

		if err := d.actionLog.RecordSuccess(ctx, sub.ID, action.ID, trigger, attempt); err != nil {
			log.Printf("⚠️ Failed to log action success: %v", err)
		}
		return
	}

	d.logFailure(ctx, sub.ID, action.ID, trigger, d.maxAttempts, lastErr.Error())
}

func (d *ActionDispatcher) logFailure(ctx context.Context, submissionID, actionID string, trigger models.ActionTrigger, attempts int, msg string) {
	if err := d.actionLog.RecordFailure(ctx, submissionID, actionID, trigger, attempts, msg); err != nil {
		log.Printf("⚠️ Failed to log action failure: %v", err)
	}
}

// resolveConfig interpolates {!expr} template values in the action config
// against the submission data. The original action is never mutated: the
// workflow definition is read-only input.
func (d *ActionDispatcher) resolveConfig(action *models.PostSubmissionAction, sub *models.Submission) *models.PostSubmissionAction {
	resolved := *action

	env := map[string]interface{}{
		"data": sub.Data,
		"submission": map[string]interface{}{
			"id":      sub.ID,
			"form_id": sub.FormID,
			"status":  string(sub.Status),
		},
	}

	switch cfg := action.Config.(type) {
	case models.EmailConfig:
		cfg.To = d.interpolate(cfg.To, env)
		cfg.Cc = d.interpolate(cfg.Cc, env)
		cfg.Bcc = d.interpolate(cfg.Bcc, env)
		cfg.Subject = d.interpolate(cfg.Subject, env)
		cfg.Body = d.interpolate(cfg.Body, env)
		resolved.Config = cfg
	case models.SlackConfig:
		cfg.Message = d.interpolate(cfg.Message, env)
		resolved.Config = cfg
	case models.WebhookConfig:
		if cfg.Payload != nil {
			payload := make(map[string]interface{}, len(cfg.Payload))
			for k, v := range cfg.Payload {
				if s, ok := v.(string); ok {
					payload[k] = d.interpolate(s, env)
				} else {
					payload[k] = v
				}
			}
			cfg.Payload = payload
		}
		resolved.Config = cfg
	}

	return &resolved
}

// interpolate evaluates a value of the exact form {!expr}; anything else
// passes through as a literal. Evaluation errors fall back to the literal.
func (d *ActionDispatcher) interpolate(value string, env map[string]interface{}) string {
	if !strings.HasPrefix(value, "{!") || !strings.HasSuffix(value, "}") {
		return value
	}
	expr := strings.TrimSpace(value[2 : len(value)-1])
	out, err := d.expr.EvaluateString(expr, env)
	if err != nil {
		log.Printf("⚠️ Template evaluation failed for %q: %v", value, err)
		return value
	}
	return out
}

// Wait blocks until all in-flight action executions finish.
// Used on shutdown and by tests.
func (d *ActionDispatcher) Wait() {
	d.wg.Wait()
}
