package mailer

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"weatherstation-server/internal/config"
)

// Mailer sends transactional mail. The console backend just logs the message,
// matching the development setup of the deployment this service fronts.
type Mailer interface {
	Send(to, subject, body string) error
}

func New(cfg config.EmailConfig, logger *slog.Logger) Mailer {
	if cfg.Backend == "smtp" {
		return &smtpMailer{cfg: cfg}
	}
	return &consoleMailer{from: cfg.From, logger: logger}
}

type consoleMailer struct {
	from   string
	logger *slog.Logger
}

func (m *consoleMailer) Send(to, subject, body string) error {
	m.logger.Info("outgoing mail",
		"from", m.from,
		"to", to,
		"subject", subject,
		"body", body,
	)
	return nil
}

type smtpMailer struct {
	cfg config.EmailConfig
}

func (m *smtpMailer) Send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
