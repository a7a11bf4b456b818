package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"rentcheck/internal/config"
)

// SMTPSender delivers alerts by email.
type SMTPSender struct {
	cfg config.MailConfig
	log zerolog.Logger
}

// NewSMTPSender builds an email sender from mail config.
func NewSMTPSender(cfg config.MailConfig, log zerolog.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, log: log}
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		s.log.Error().Err(err).Str("to", msg.To).Str("kind", string(msg.Kind)).Msg("send mail")
		return fmt.Errorf("send mail: %w", err)
	}

	s.log.Info().Str("to", msg.To).Str("kind", string(msg.Kind)).Msg("notification sent")
	return nil
}

// LogSender is used when SMTP is not configured: alerts are still recorded
// and logged, just not emailed.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender builds a log-only sender.
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.log.Info().
		Str("to", msg.To).
		Str("kind", string(msg.Kind)).
		Str("subject", msg.Subject).
		Msg("notification (mail disabled)")
	return nil
}
