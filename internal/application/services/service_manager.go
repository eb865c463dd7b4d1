package services

import (
	"context"
	"log"
	"time"

	"github.com/formsage/backend/internal/domain/models"
	"github.com/formsage/backend/internal/infrastructure/database"
	"github.com/formsage/backend/internal/infrastructure/persistence"
	"github.com/formsage/backend/internal/infrastructure/senders"
)

// ServiceManager orchestrates all services with dependency injection
type ServiceManager struct {
	db *database.Connection

	EventBus   *EventBus
	Evaluator  *ConditionEvaluator
	Scheduler  *DeadlineScheduler
	Pipeline   *ApprovalPipeline
	Dispatcher *ActionDispatcher
	Submission *SubmissionService
	Workflow   *WorkflowService
	Archive    *ArchiveService
	Auth       *AuthService

	ActionLog *persistence.ActionLogRepository
	Custom    *senders.CustomSender

	submissions *persistence.SubmissionRepository
	workflows   *persistence.WorkflowRepository
}

// NewServiceManager creates a new service manager with all dependencies wired
func NewServiceManager(db *database.Connection) *ServiceManager {
	sm := &ServiceManager{db: db}

	submissionRepo := persistence.NewSubmissionRepository(db.DB())
	workflowRepo := persistence.NewWorkflowRepository(db.DB())
	actionLogRepo := persistence.NewActionLogRepository(db.DB())
	userRepo := persistence.NewUserRepository(db.DB())

	sm.submissions = submissionRepo
	sm.workflows = workflowRepo
	sm.ActionLog = actionLogRepo

	sm.EventBus = NewEventBus()
	sm.Evaluator = NewConditionEvaluator()
	sm.Scheduler = NewDeadlineScheduler(time.Second)

	// Pipeline and scheduler reference each other; the handler is set
	// after construction
	sm.Pipeline = NewApprovalPipeline(submissionRepo, workflowRepo, sm.Evaluator, sm.Scheduler, sm.EventBus)
	sm.Scheduler.SetHandler(sm.Pipeline)

	sm.Dispatcher = NewActionDispatcher(workflowRepo, submissionRepo, sm.Evaluator, actionLogRepo)
	sm.Custom = senders.NewCustomSender()
	sm.Dispatcher.RegisterSender(models.ActionTypeEmail, senders.NewEmailSender())
	sm.Dispatcher.RegisterSender(models.ActionTypeWebhook, senders.NewWebhookSender())
	sm.Dispatcher.RegisterSender(models.ActionTypeSlack, senders.NewSlackSender())
	sm.Dispatcher.RegisterSender(models.ActionTypeCustom, sm.Custom)
	sm.Dispatcher.RegisterHandlers(sm.EventBus)

	sm.Submission = NewSubmissionService(submissionRepo, workflowRepo, sm.Pipeline)
	sm.Workflow = NewWorkflowService(workflowRepo)
	sm.Archive = NewArchiveService(submissionRepo, workflowRepo, sm.Pipeline)
	sm.Auth = NewAuthService(userRepo)

	return sm
}

// StartWorkers launches the deadline scheduler and the archive sweep
func (sm *ServiceManager) StartWorkers() error {
	sm.Scheduler.Start()
	if err := sm.Archive.Start(); err != nil {
		return err
	}
	return nil
}

// StopWorkers shuts the background workers down and drains in-flight
// action deliveries
func (sm *ServiceManager) StopWorkers() {
	sm.Scheduler.Stop()
	sm.Archive.Stop()
	sm.Dispatcher.Wait()
}

// RearmDeadlines re-arms timeout deadlines for every in-flight submission.
// Called once at startup: armed deadlines live in memory and do not
// survive a restart, but the step's entry time is durable, so the
// original deadline is reconstructed rather than reset.
func (sm *ServiceManager) RearmDeadlines(ctx context.Context) error {
	subs, err := sm.submissions.ListInFlight(ctx)
	if err != nil {
		return err
	}

	rearmed := 0
	for _, sub := range subs {
		if sub.WorkflowDefinitionID == "" {
			continue
		}
		// Resolve the submission's own definition snapshot, not the form's
		// current one: the workflow may have been edited since this
		// submission entered review
		def, err := sm.workflows.GetByID(ctx, sub.WorkflowDefinitionID)
		if err != nil || def == nil {
			continue
		}
		step := def.StepAt(sub.CurrentStepIndex)
		if step == nil {
			continue
		}
		d, ok := step.TimeoutDuration()
		if !ok {
			continue
		}

		// Deadline counts from the last state change, which is when the
		// step was entered (or escalated)
		sm.Scheduler.Arm(sub.ID, sub.CurrentStepIndex, sub.LastModifiedDate.Add(d))
		rearmed++
	}

	if rearmed > 0 {
		log.Printf("⏰ Re-armed %d timeout deadline(s) after restart", rearmed)
	}
	return nil
}
