package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/projecthub/projecthub/internal/config"
	"github.com/projecthub/projecthub/internal/safego"
	"github.com/projecthub/projecthub/internal/telemetry"
)

// DefaultSendTimeout bounds one delivery when no timeout is configured.
const DefaultSendTimeout = 10 * time.Second

// MailerOptions configures a Mailer.
type MailerOptions struct {
	FrontendURL   string
	FromName      string
	SendTimeout   time.Duration
	InvitationTTL time.Duration
	ResetTokenTTL time.Duration
}

// OptionsFromConfig builds MailerOptions from application configuration.
func OptionsFromConfig(cfg *config.Config) MailerOptions {
	return MailerOptions{
		FrontendURL:   cfg.Notifications.FrontendURL,
		FromName:      cfg.Notifications.FromName,
		SendTimeout:   cfg.Notifications.SendTimeout,
		InvitationTTL: cfg.Invitations.TTL,
		ResetTokenTTL: cfg.Auth.ResetTokenExpiry,
	}
}

// Mailer renders application emails and sends them fire-and-forget.
// Delivery failures are logged and counted, never returned to the caller.
type Mailer struct {
	dispatcher Dispatcher
	opts       MailerOptions
	inflight   safego.Group
}

// NewMailer creates a Mailer that delivers through d.
func NewMailer(d Dispatcher, opts MailerOptions) *Mailer {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.FromName == "" {
		opts.FromName = "ProjectHub"
	}
	opts.FrontendURL = strings.TrimRight(opts.FrontendURL, "/")
	return &Mailer{dispatcher: d, opts: opts}
}

// Go sends msg in the background, bounded by the configured send timeout.
func (m *Mailer) Go(kind string, msg Message) {
	m.inflight.Go("email:"+kind, func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.SendTimeout)
		defer cancel()

		start := time.Now()
		if err := m.dispatcher.Send(ctx, msg); err != nil {
			telemetry.EmailsSentTotal.WithLabelValues(kind, "failed").Inc()
			slog.Warn("email delivery failed", "kind", kind, "to", msg.To, "error", err)
			return
		}
		telemetry.EmailsSentTotal.WithLabelValues(kind, "sent").Inc()
		slog.Debug("email sent", "kind", kind, "to", msg.To, "duration", time.Since(start))
	})
}

// Wait blocks until in-flight deliveries finish or ctx is done. It is called
// during shutdown.
func (m *Mailer) Wait(ctx context.Context) error {
	return m.inflight.Wait(ctx)
}

func (m *Mailer) send(kind, to string, data templateData) {
	data.FromName = m.opts.FromName
	msg, err := render(kind, to, data)
	if err != nil {
		telemetry.EmailsSentTotal.WithLabelValues(kind, "failed").Inc()
		slog.Error("email render failed", "kind", kind, "error", err)
		return
	}
	m.Go(kind, msg)
}

func (m *Mailer) link(format string, args ...interface{}) string {
	return m.opts.FrontendURL + fmt.Sprintf(format, args...)
}

// Welcome greets a newly registered user.
func (m *Mailer) Welcome(to, name string) {
	m.send(KindWelcome, to, templateData{Name: name, Link: m.link("/dashboard")})
}

// TeamAdded tells an existing user they were added to a team.
func (m *Mailer) TeamAdded(to, name, teamID, teamName, inviterName, role string) {
	m.send(KindTeamAdded, to, templateData{
		Name:        name,
		TeamName:    teamName,
		InviterName: inviterName,
		Role:        role,
		Link:        m.link("/teams/%s", url.PathEscape(teamID)),
	})
}

// TeamInvitation invites an email without an account to register and join.
func (m *Mailer) TeamInvitation(to, teamName, inviterName, token string) {
	m.send(KindTeamInvitation, to, templateData{
		TeamName:    teamName,
		InviterName: inviterName,
		ExpiresIn:   humanDuration(m.opts.InvitationTTL),
		Link:        m.link("/register?token=%s", url.QueryEscape(token)),
	})
}

// TaskAssigned tells a user a task was assigned to them.
func (m *Mailer) TaskAssigned(to, name, taskID, taskTitle, projectName string) {
	m.send(KindTaskAssigned, to, templateData{
		Name:        name,
		TaskTitle:   taskTitle,
		ProjectName: projectName,
		Link:        m.link("/tasks/%s", url.PathEscape(taskID)),
	})
}

// ProjectInvitation tells a user they were added to a project.
func (m *Mailer) ProjectInvitation(to, name, projectID, projectName, inviterName string) {
	m.send(KindProjectInvitation, to, templateData{
		Name:        name,
		ProjectName: projectName,
		InviterName: inviterName,
		Link:        m.link("/projects/%s", url.PathEscape(projectID)),
	})
}

// PasswordReset sends the reset link for token.
func (m *Mailer) PasswordReset(to, token string) {
	m.send(KindPasswordReset, to, templateData{
		ExpiresIn: humanDuration(m.opts.ResetTokenTTL),
		Link:      m.link("/reset-password?token=%s", url.QueryEscape(token)),
	})
}

// humanDuration renders whole days or hours, e.g. "7 days" or "1 hour".
func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return plural(int64(d/(24*time.Hour)), "day")
	case d >= time.Hour:
		return plural(int64(d/time.Hour), "hour")
	case d > 0:
		return plural(int64(d/time.Minute), "minute")
	}
	return "a short time"
}
