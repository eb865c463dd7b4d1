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

// WebhookSender POSTs action payloads to external HTTP endpoints.
// The payload always carries the submission envelope; configured payload
// fields are merged on top.
type WebhookSender struct {
	client *http.Client
}

// NewWebhookSender creates a WebhookSender with a 10s request timeout
func NewWebhookSender() *WebhookSender {
	return &WebhookSender{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers one webhook action
func (s *WebhookSender) Send(ctx context.Context, action *models.PostSubmissionAction, snapshot *models.Submission) error {
	cfg, ok := action.Config.(models.WebhookConfig)
	if !ok {
		return fmt.Errorf("action %s: config is not a webhook config", action.ID)
	}
	if cfg.URL == "" {
		return fmt.Errorf("action %s: no webhook URL", action.ID)
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}

	payload := map[string]interface{}{
		"submission_id": snapshot.ID,
		"form_id":       snapshot.FormID,
		"status":        string(snapshot.Status),
		"data":          snapshot.Data,
	}
	for k, v := range cfg.Payload {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
