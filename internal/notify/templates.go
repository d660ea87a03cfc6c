package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// Email kinds. They double as the "kind" label of projecthub_emails_sent_total.
const (
	KindWelcome           = "welcome"
	KindTeamAdded         = "team_added"
	KindTeamInvitation    = "team_invitation"
	KindTaskAssigned      = "task_assigned"
	KindProjectInvitation = "project_invitation"
	KindPasswordReset     = "password_reset"
)

type emailTemplate struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

const htmlFooter = `<br><p>Best regards,<br>{{.FromName}}</p>`

func mustTemplate(name, subject, text, html string) emailTemplate {
	return emailTemplate{
		subject: texttemplate.Must(texttemplate.New(name + ".subject").Parse(subject)),
		text:    texttemplate.Must(texttemplate.New(name + ".txt").Parse(text + "\n\n{{.FromName}}\n")),
		html:    htmltemplate.Must(htmltemplate.New(name + ".html").Parse(html + htmlFooter)),
	}
}

var templates = map[string]emailTemplate{
	KindWelcome: mustTemplate(KindWelcome,
		`Welcome to {{.FromName}}`,
		`Welcome, {{.Name}}! Thank you for joining {{.FromName}}. You can now start creating projects, managing tasks, and collaborating with your team.
{{.Link}}`,
		`<h1>Welcome, {{.Name}}!</h1>
<p>Thank you for joining {{.FromName}}.</p>
<p>You can now start creating projects, managing tasks, and collaborating with your team.</p>
<p><a href="{{.Link}}">Open {{.FromName}}</a></p>`),

	KindTeamAdded: mustTemplate(KindTeamAdded,
		`You have been added to team: {{.TeamName}}`,
		`Hi {{.Name}}, {{.InviterName}} added you to the team {{.TeamName}} as {{.Role}}. Open the team: {{.Link}}`,
		`<h2>You joined a team</h2>
<p>Hi {{.Name}},</p>
<p>{{.InviterName}} added you to the team <strong>{{.TeamName}}</strong> as {{.Role}}.</p>
<p><a href="{{.Link}}">Open team</a></p>`),

	KindTeamInvitation: mustTemplate(KindTeamInvitation,
		`Invitation to join team: {{.TeamName}}`,
		`Hi, {{.InviterName}} has invited you to join the team: {{.TeamName}}. Use this link to join: {{.Link}}
This link will expire in {{.ExpiresIn}}.`,
		`<h2>Team Invitation</h2>
<p>Hi,</p>
<p>{{.InviterName}} has invited you to join the team:</p>
<p><strong>{{.TeamName}}</strong></p>
<p>Click the link below to accept the invitation:</p>
<a href="{{.Link}}">Join Team</a>
<p>This link will expire in {{.ExpiresIn}}.</p>`),

	KindTaskAssigned: mustTemplate(KindTaskAssigned,
		`New Task Assigned: {{.TaskTitle}}`,
		`Hi {{.Name}}, You have been assigned a new task: {{.TaskTitle}} in project {{.ProjectName}}. View it here: {{.Link}}`,
		`<h2>New Task Assignment</h2>
<p>Hi {{.Name}},</p>
<p>You have been assigned a new task:</p>
<p><strong>{{.TaskTitle}}</strong></p>
<p>Project: {{.ProjectName}}</p>
<p><a href="{{.Link}}">View task</a></p>`),

	KindProjectInvitation: mustTemplate(KindProjectInvitation,
		`Project Invitation: {{.ProjectName}}`,
		`Hi {{.Name}}, {{.InviterName}} has invited you to join the project: {{.ProjectName}}. View it here: {{.Link}}`,
		`<h2>Project Invitation</h2>
<p>Hi {{.Name}},</p>
<p>{{.InviterName}} has invited you to join the project:</p>
<p><strong>{{.ProjectName}}</strong></p>
<p><a href="{{.Link}}">View project</a></p>`),

	KindPasswordReset: mustTemplate(KindPasswordReset,
		`Password Reset Request`,
		`You requested a password reset. Please visit this link to reset your password: {{.Link}}
This link will expire in {{.ExpiresIn}}. If you didn't request this, please ignore this email.`,
		`<h2>Password Reset Request</h2>
<p>You requested a password reset for your account.</p>
<p>Please click the link below to reset your password:</p>
<a href="{{.Link}}">{{.Link}}</a>
<p>This link will expire in {{.ExpiresIn}}.</p>
<p>If you didn't request this, please ignore this email.</p>`),
}

// templateData is the union of fields referenced by the templates.
type templateData struct {
	FromName    string
	Name        string
	Link        string
	TeamName    string
	InviterName string
	Role        string
	TaskTitle   string
	ProjectName string
	ExpiresIn   string
}

func render(kind, to string, data templateData) (Message, error) {
	tpl, ok := templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown email kind %q", kind)
	}
	var subject, text, html bytes.Buffer
	if err := tpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", kind, err)
	}
	if err := tpl.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", kind, err)
	}
	if err := tpl.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", kind, err)
	}
	return Message{To: to, Subject: subject.String(), Text: text.String(), HTML: html.String()}, nil
}
