package senders

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"os"
	"strings"

	"github.com/formsage/backend/internal/domain/models"
)

// EmailSender delivers email actions over SMTP.
// Connection settings come from SMTP_HOST/SMTP_PORT/SMTP_USER/SMTP_PASSWORD;
// when SMTP_HOST is unset the sender logs the message instead, which keeps
// local development working without a mail relay.
type EmailSender struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

// NewEmailSender creates an EmailSender from environment configuration
func NewEmailSender() *EmailSender {
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = "noreply@formsage.local"
	}
	return &EmailSender{
		host:     os.Getenv("SMTP_HOST"),
		port:     getEnvDefault("SMTP_PORT", "587"),
		user:     os.Getenv("SMTP_USER"),
		password: os.Getenv("SMTP_PASSWORD"),
		from:     from,
	}
}

// Send delivers one email action
func (s *EmailSender) Send(ctx context.Context, action *models.PostSubmissionAction, snapshot *models.Submission) error {
	cfg, ok := action.Config.(models.EmailConfig)
	if !ok {
		return fmt.Errorf("action %s: config is not an email config", action.ID)
	}
	if cfg.To == "" {
		return fmt.Errorf("action %s: no recipient", action.ID)
	}

	if s.host == "" {
		log.Printf("📧 [dev] Email to %s: %s", cfg.To, cfg.Subject)
		return nil
	}

	recipients := []string{cfg.To}
	if cfg.Cc != "" {
		recipients = append(recipients, cfg.Cc)
	}
	if cfg.Bcc != "" {
		recipients = append(recipients, cfg.Bcc)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", cfg.To)
	if cfg.Cc != "" {
		fmt.Fprintf(&msg, "Cc: %s\r\n", cfg.Cc)
	}
	fmt.Fprintf(&msg, "Subject: %s\r\n", cfg.Subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(cfg.Body)

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}

	addr := s.host + ":" + s.port
	if err := smtp.SendMail(addr, auth, s.from, recipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
