package services

import (
	"context"
	"time"

	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
)

// The store interfaces below are satisfied by the repositories package and
// replaced by in-memory fakes in tests.

// TeamStore persists teams and memberships.
type TeamStore interface {
	CreateTeam(ctx context.Context, team *models.Team, members []repositories.InitialMember) error
	GetTeamByID(ctx context.Context, teamID string) (*models.Team, error)
	GetTeamDetail(ctx context.Context, teamID string) (*models.TeamDetail, error)
	ListTeamsForUser(ctx context.Context, userID string) ([]*models.Team, error)
	UpdateTeam(ctx context.Context, team *models.Team) error
	SetTeamProjects(ctx context.Context, teamID string, projectIDs []string) error
	DeleteTeam(ctx context.Context, teamID string) error

	AddMember(ctx context.Context, teamID, userID, role string) (*models.TeamMember, error)
	RemoveMember(ctx context.Context, teamID, userID string) (bool, error)
	UpdateMemberRole(ctx context.Context, teamID, userID, role string) error
	GetMember(ctx context.Context, teamID, userID string) (*models.TeamMember, error)
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// InvitationStore persists pending team invitations.
type InvitationStore interface {
	UpsertInvitation(ctx context.Context, inv *models.Invitation) error
	GetInvitationPreview(ctx context.Context, token string, now time.Time) (*models.InvitationPreview, error)
	ListPendingInvitations(ctx context.Context, teamID string, now time.Time) ([]*models.Invitation, error)
	RedeemInvitation(ctx context.Context, token, email, userID string, now time.Time) (*models.Invitation, error)
	DeleteInvitation(ctx context.Context, teamID, invitationID string) error
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, id, userID string) error
}

// ProjectStore persists projects and their member lists.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project, memberIDs []string) error
	GetProjectByID(ctx context.Context, projectID string) (*models.Project, error)
	GetProjectDetail(ctx context.Context, projectID string) (*models.ProjectDetail, error)
	ListProjectsForUser(ctx context.Context, userID string) ([]*models.Project, error)
	IsProjectMember(ctx context.Context, projectID, userID string) (bool, error)
	UpdateProject(ctx context.Context, p *models.Project, memberIDs []string) ([]string, error)
	DeleteProject(ctx context.Context, projectID string) error
}

// TaskStore persists tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, t *models.Task) error
	GetTaskByID(ctx context.Context, taskID string) (*models.TaskDetail, error)
	ListTasks(ctx context.Context, f repositories.TaskFilters) ([]*models.TaskDetail, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	UpdateTaskStatus(ctx context.Context, taskID, status string) error
	DeleteTask(ctx context.Context, taskID string) error
}

// TeamMailer sends the team membership emails. *notify.Mailer implements it.
type TeamMailer interface {
	TeamAdded(to, name, teamID, teamName, inviterName, role string)
	TeamInvitation(to, teamName, inviterName, token string)
}

// AccountMailer sends the account emails. *notify.Mailer implements it.
type AccountMailer interface {
	Welcome(to, name string)
	PasswordReset(to, token string)
}

// WorkMailer sends project and task emails. *notify.Mailer implements it.
type WorkMailer interface {
	TaskAssigned(to, name, taskID, taskTitle, projectName string)
	ProjectInvitation(to, name, projectID, projectName, inviterName string)
}

var (
	_ TeamStore         = (*repositories.TeamRepository)(nil)
	_ UserStore         = (*repositories.UserRepository)(nil)
	_ InvitationStore   = (*repositories.InvitationRepository)(nil)
	_ NotificationStore = (*repositories.NotificationRepository)(nil)
	_ ProjectStore      = (*repositories.ProjectRepository)(nil)
	_ TaskStore         = (*repositories.TaskRepository)(nil)
)
