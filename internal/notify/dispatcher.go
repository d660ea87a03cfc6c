// Package notify delivers outbound email. A Dispatcher performs a single
// delivery; the Mailer renders the application's templates and hands them to a
// Dispatcher in the background so request handlers never wait on a mail server.
package notify

import (
	"context"
	"log/slog"

	"github.com/projecthub/projecthub/internal/config"
)

// Message is one outbound email. HTML and Text are alternative renderings of
// the same content; either may be empty.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Dispatcher delivers a single message. Implementations must honour ctx.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// NewDispatcher returns an SMTPDispatcher when notifications are enabled and an
// SMTP host is configured, and a LogDispatcher otherwise.
func NewDispatcher(cfg *config.NotificationsConfig) Dispatcher {
	if !cfg.Enabled {
		slog.Info("email delivery disabled (notifications.enabled=false), emails will be logged")
		return LogDispatcher{}
	}
	if cfg.SMTP.Host == "" {
		slog.Warn("email delivery disabled (notifications.smtp.host not set), emails will be logged")
		return LogDispatcher{}
	}
	return NewSMTPDispatcher(cfg.SMTP, cfg.FromName)
}

// LogDispatcher writes messages to the log instead of sending them.
type LogDispatcher struct{}

// Send logs the message envelope and its plain-text body.
func (LogDispatcher) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slog.Info("email (not sent, delivery disabled)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
