package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/formsage/backend/internal/domain/ports"
)

// DefaultArchiveAfterDays applies when a workflow sets no auto-archive
// window of its own
const DefaultArchiveAfterDays = 30

const sweepBatchSize = 200

// ArchiveService expires stale non-terminal submissions on a cron
// schedule. A submission is stale when it has not been modified for
// longer than its workflow's auto-archive window.
type ArchiveService struct {
	store     ports.SubmissionStore
	workflows ports.WorkflowProvider
	pipeline  *ApprovalPipeline

	cron *cron.Cron
}

// NewArchiveService creates a new ArchiveService
func NewArchiveService(store ports.SubmissionStore, workflows ports.WorkflowProvider, pipeline *ApprovalPipeline) *ArchiveService {
	return &ArchiveService{
		store:     store,
		workflows: workflows,
		pipeline:  pipeline,
		cron:      cron.New(),
	}
}

// Start schedules the hourly sweep
func (s *ArchiveService) Start() error {
	if _, err := s.cron.AddFunc("@hourly", func() {
		if err := s.Sweep(context.Background()); err != nil {
			log.Printf("⚠️ Archive sweep failed: %v", err)
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("✅ ArchiveService: hourly sweep scheduled")
	return nil
}

// Stop halts the cron scheduler and waits for a running sweep to finish
func (s *ArchiveService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Printf("🛑 ArchiveService stopped")
}

// Sweep expires every submission past its archive window. Candidates are
// listed against the shortest possible window; each one is then checked
// against its own workflow's setting before expiring.
func (s *ArchiveService) Sweep(ctx context.Context) error {
	now := time.Now()
	cutoff := now.Add(-24 * time.Hour)

	stale, err := s.store.ListStale(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return err
	}

	expired := 0
	for _, sub := range stale {
		days := DefaultArchiveAfterDays
		if sub.WorkflowDefinitionID != "" {
			def, err := s.workflows.GetByID(ctx, sub.WorkflowDefinitionID)
			if err != nil {
				log.Printf("⚠️ Archive sweep: failed to load workflow for %s: %v", sub.ID, err)
				continue
			}
			if def != nil && def.Settings.AutoArchiveAfterDays != nil {
				days = *def.Settings.AutoArchiveAfterDays
			}
		}

		if now.Sub(sub.LastModifiedDate) < time.Duration(days)*24*time.Hour {
			continue
		}

		if err := s.pipeline.Expire(ctx, sub.ID); err != nil {
			log.Printf("⚠️ Archive sweep: failed to expire %s: %v", sub.ID, err)
			continue
		}
		expired++
	}

	if expired > 0 {
		log.Printf("⏰ Archive sweep expired %d stale submission(s)", expired)
	}
	return nil
}
