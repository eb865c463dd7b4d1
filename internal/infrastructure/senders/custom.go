package senders

import (
	"context"
	"fmt"
	"sync"

	"github.com/formsage/backend/internal/domain/models"
)

// CustomHandlerFunc is a registered handler for custom actions
type CustomHandlerFunc func(ctx context.Context, params map[string]interface{}, snapshot *models.Submission) error

// CustomSender routes custom actions to handlers registered by name.
// Deployments plug in their own integrations without touching the
// dispatch machinery.
type CustomSender struct {
	mu       sync.RWMutex
	handlers map[string]CustomHandlerFunc
}

// NewCustomSender creates an empty CustomSender
func NewCustomSender() *CustomSender {
	return &CustomSender{handlers: make(map[string]CustomHandlerFunc)}
}

// Register installs a handler under the given name
func (s *CustomSender) Register(name string, handler CustomHandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = handler
}

// Send routes one custom action to its registered handler
func (s *CustomSender) Send(ctx context.Context, action *models.PostSubmissionAction, snapshot *models.Submission) error {
	cfg, ok := action.Config.(models.CustomConfig)
	if !ok {
		return fmt.Errorf("action %s: config is not a custom config", action.ID)
	}

	s.mu.RLock()
	handler, ok := s.handlers[cfg.Handler]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("action %s: no custom handler registered as %q", action.ID, cfg.Handler)
	}

	return handler(ctx, cfg.Params, snapshot)
}
