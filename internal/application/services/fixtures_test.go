package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/formsage/backend/internal/domain/models"
)

// memoryStore is an in-memory SubmissionStore for engine tests
type memoryStore struct {
	mu   sync.Mutex
	subs map[string]*models.Submission
}

func newMemoryStore(subs ...*models.Submission) *memoryStore {
	s := &memoryStore{subs: make(map[string]*models.Submission)}
	for _, sub := range subs {
		s.subs[sub.ID] = sub.Clone()
	}
	return s
}

func (s *memoryStore) Insert(ctx context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; ok {
		return fmt.Errorf("duplicate submission %s", sub.ID)
	}
	s.subs[sub.ID] = sub.Clone()
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, nil
	}
	return sub.Clone(), nil
}

func (s *memoryStore) Update(ctx context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.subs[sub.ID]
	if !ok {
		return fmt.Errorf("submission %s not found", sub.ID)
	}
	// The ledger is append-only and owned by ClaimAction
	clone := sub.Clone()
	clone.FiredActions = existing.FiredActions
	s.subs[sub.ID] = clone
	return nil
}

func (s *memoryStore) ClaimAction(ctx context.Context, submissionID, actionID string, trigger models.ActionTrigger) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[submissionID]
	if !ok {
		return false, fmt.Errorf("submission %s not found", submissionID)
	}
	if sub.ActionFired(actionID, trigger) {
		return false, nil
	}
	sub.FiredActions = append(sub.FiredActions, models.ActionOccurrence{ActionID: actionID, Trigger: trigger})
	return true, nil
}

func (s *memoryStore) ListPendingForApprover(ctx context.Context, approverIdentity string) ([]*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Submission
	for _, sub := range s.subs {
		if sub.InFlight() && sub.CurrentApproverIdentity == approverIdentity {
			out = append(out, sub.Clone())
		}
	}
	return out, nil
}

func (s *memoryStore) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Submission
	for _, sub := range s.subs {
		if !sub.IsTerminal() && sub.LastModifiedDate.Before(cutoff) {
			out = append(out, sub.Clone())
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// memoryWorkflows is an in-memory WorkflowStore for engine tests.
// Definitions are immutable snapshots: Save supersedes the form's
// current definition without touching prior ones, Delete retires a
// snapshot from use by new submissions but keeps it resolvable by ID.
type memoryWorkflows struct {
	mu      sync.Mutex
	defs    map[string]*models.WorkflowDefinition
	current map[string]string // formID -> current definition ID
}

func newMemoryWorkflows(defs ...*models.WorkflowDefinition) *memoryWorkflows {
	w := &memoryWorkflows{
		defs:    make(map[string]*models.WorkflowDefinition),
		current: make(map[string]string),
	}
	for _, def := range defs {
		w.defs[def.ID] = def
		w.current[def.FormID] = def.ID
	}
	return w
}

func (w *memoryWorkflows) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.defs[id], nil
}

func (w *memoryWorkflows) GetByForm(ctx context.Context, formID string) (*models.WorkflowDefinition, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, ok := w.current[formID]
	if !ok {
		return nil, nil
	}
	return w.defs[id], nil
}

func (w *memoryWorkflows) Save(ctx context.Context, def *models.WorkflowDefinition) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.defs[def.ID] = def
	w.current[def.FormID] = def.ID
	return nil
}

func (w *memoryWorkflows) Delete(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	def, ok := w.defs[id]
	if !ok {
		return nil
	}
	if w.current[def.FormID] == id {
		delete(w.current, def.FormID)
	}
	return nil
}

// stubScheduler records Arm/Disarm calls without running timers
type stubScheduler struct {
	mu       sync.Mutex
	armed    map[string]time.Time
	disarmed []string
}

func newStubScheduler() *stubScheduler {
	return &stubScheduler{armed: make(map[string]time.Time)}
}

func schedKey(submissionID string, stepIndex int) string {
	return fmt.Sprintf("%s/%d", submissionID, stepIndex)
}

func (s *stubScheduler) Arm(submissionID string, stepIndex int, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed[schedKey(submissionID, stepIndex)] = deadline
}

func (s *stubScheduler) Disarm(submissionID string, stepIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.armed, schedKey(submissionID, stepIndex))
	s.disarmed = append(s.disarmed, schedKey(submissionID, stepIndex))
}

func (s *stubScheduler) isArmed(submissionID string, stepIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.armed[schedKey(submissionID, stepIndex)]
	return ok
}

// memoryActionLog records action outcomes for dispatcher tests
type memoryActionLog struct {
	mu      sync.Mutex
	entries []actionLogEntry
}

type actionLogEntry struct {
	SubmissionID string
	ActionID     string
	Trigger      models.ActionTrigger
	Status       string
	Attempts     int
	LastErr      string
}

func (l *memoryActionLog) RecordSuccess(ctx context.Context, submissionID, actionID string, trigger models.ActionTrigger, attempts int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, actionLogEntry{submissionID, actionID, trigger, "SUCCESS", attempts, ""})
	return nil
}

func (l *memoryActionLog) RecordFailure(ctx context.Context, submissionID, actionID string, trigger models.ActionTrigger, attempts int, lastErr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, actionLogEntry{submissionID, actionID, trigger, "FAILED", attempts, lastErr})
	return nil
}

func (l *memoryActionLog) byStatus(status string) []actionLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []actionLogEntry
	for _, e := range l.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}
