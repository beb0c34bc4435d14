// Package mail sends receipt emails over authenticated SMTP.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog/log"
)

// SMTPSender delivers HTML mail through an app-password SMTP account.
type SMTPSender struct {
	host     string
	port     string
	from     string
	password string
}

// NewSMTPSender creates a sender for host:port authenticating as from.
func NewSMTPSender(host, port, from, password string) *SMTPSender {
	return &SMTPSender{host: host, port: port, from: from, password: password}
}

// Send delivers one message. The context only gates entry; net/smtp does not
// support per-dial cancellation.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		htmlBody,
	}, "\r\n")

	auth := smtp.PlainAuth("", s.from, s.password, s.host)
	addr := s.host + ":" + s.port
	if err := smtp.SendMail(addr, auth, s.from, to, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	log.Info().Int("recipients", len(to)).Str("subject", subject).Msg("Email sent")
	return nil
}

// Disabled drops every message. Used when email delivery is turned off.
type Disabled struct{}

// Send logs and discards the message.
func (Disabled) Send(_ context.Context, to []string, subject, _ string) error {
	log.Debug().Int("recipients", len(to)).Str("subject", subject).Msg("Email disabled, message dropped")
	return nil
}
