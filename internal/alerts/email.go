package alerts

import (
	"context"
	"fmt"

	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"

	"github.com/wneessen/go-mail"
)

// Sender delivers one alert to the operators.
type Sender interface {
	Send(ctx context.Context, alert Alert) error
}

// EmailSender delivers alerts over SMTP.
type EmailSender struct {
	cfg config.AlertConfig
	log *logger.Logger
}

// NewEmailSender creates an SMTP-backed sender.
func NewEmailSender(cfg config.AlertConfig, log *logger.Logger) *EmailSender {
	return &EmailSender{cfg: cfg, log: log}
}

// Send builds and submits the alert email. Disabled configuration is a
// silent no-op so environments without SMTP still drain the outbox.
func (s *EmailSender) Send(ctx context.Context, alert Alert) error {
	if !s.cfg.GetAlertEmailEnabled() {
		s.log.Debug("alert email disabled, dropping alert", "type", alert.Type)
		return nil
	}

	recipients := s.cfg.GetAlertRecipients()
	if len(recipients) == 0 {
		s.log.Warn("alert email enabled but no recipients configured")
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(s.cfg.GetAlertFromName(), s.cfg.GetAlertFromAddress()); err != nil {
		return fmt.Errorf("set alert sender: %w", err)
	}
	if err := msg.To(recipients...); err != nil {
		return fmt.Errorf("set alert recipients: %w", err)
	}
	msg.Subject(alert.Subject())
	msg.SetBodyString(mail.TypeTextPlain, alert.Body())

	client, err := mail.NewClient(s.cfg.GetSMTPHost(),
		mail.WithPort(s.cfg.GetSMTPPort()),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.GetSMTPUsername()),
		mail.WithPassword(s.cfg.GetSMTPPassword()),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}
	return nil
}
