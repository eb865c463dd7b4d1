package senders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/formsage/backend/internal/domain/models"
)

// SlackSender posts messages to Slack incoming webhooks
type SlackSender struct {
	client *http.Client
}

// NewSlackSender creates a SlackSender with a 10s request timeout
func NewSlackSender() *SlackSender {
	return &SlackSender{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers one Slack action
func (s *SlackSender) Send(ctx context.Context, action *models.PostSubmissionAction, snapshot *models.Submission) error {
	cfg, ok := action.Config.(models.SlackConfig)
	if !ok {
		return fmt.Errorf("action %s: config is not a slack config", action.ID)
	}
	if cfg.WebhookURL == "" {
		return fmt.Errorf("action %s: no slack webhook URL", action.ID)
	}

	payload := map[string]interface{}{"text": cfg.Message}
	if cfg.Channel != "" {
		payload["channel"] = cfg.Channel
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}
