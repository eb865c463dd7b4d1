package rest

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/formsage/backend/internal/infrastructure/persistence"
)

// ActionLogReader exposes the action execution log
type ActionLogReader interface {
	ListBySubmission(ctx context.Context, submissionID string) ([]persistence.ActionLogEntry, error)
}

// ActionLogHandler serves the action execution log for inspection
type ActionLogHandler struct {
	log ActionLogReader
}

// NewActionLogHandler creates a new ActionLogHandler
func NewActionLogHandler(log ActionLogReader) *ActionLogHandler {
	return &ActionLogHandler{log: log}
}

// ListBySubmission handles GET /api/submissions/:id/actions
func (h *ActionLogHandler) ListBySubmission(c *gin.Context) {
	id := c.Param("id")
	HandleGetEnvelope(c, "actions", func() (interface{}, error) {
		return h.log.ListBySubmission(c.Request.Context(), id)
	})
}
