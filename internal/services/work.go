package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/projecthub/projecthub/internal/db/models"
)

// WorkNotifier records in-app notifications and sends emails for project
// and task events. Failures are logged; the triggering write has already
// succeeded and is never rolled back.
type WorkNotifier struct {
	users         UserStore
	notifications NotificationStore
	mailer        WorkMailer
}

// NewWorkNotifier creates a WorkNotifier.
func NewWorkNotifier(users UserStore, notifications NotificationStore, mailer WorkMailer) *WorkNotifier {
	return &WorkNotifier{users: users, notifications: notifications, mailer: mailer}
}

// TaskAssigned notifies the task's assignee. Self-assignment is silent.
func (w *WorkNotifier) TaskAssigned(ctx context.Context, actor *models.User, task *models.Task, projectName string) {
	if task.AssignedTo == nil || *task.AssignedTo == actor.ID {
		return
	}
	assignee, err := w.users.GetUserByID(ctx, *task.AssignedTo)
	if err != nil || assignee == nil {
		slog.Warn("task assignee lookup failed", "task_id", task.ID, "user_id", *task.AssignedTo, "error", err)
		return
	}

	taskID, projectID := task.ID, task.ProjectID
	w.record(ctx, &models.Notification{
		UserID:           assignee.ID,
		Type:             models.NotificationTaskAssigned,
		Title:            "New task assigned",
		Message:          fmt.Sprintf("%s assigned you %q", actor.Name, task.Title),
		RelatedTaskID:    &taskID,
		RelatedProjectID: &projectID,
	})
	w.mailer.TaskAssigned(assignee.Email, assignee.Name, task.ID, task.Title, projectName)
}

// ProjectMembersAdded notifies each newly added project member except actor.
func (w *WorkNotifier) ProjectMembersAdded(ctx context.Context, actor *models.User, project *models.Project, userIDs []string) {
	for _, id := range userIDs {
		if id == actor.ID {
			continue
		}
		member, err := w.users.GetUserByID(ctx, id)
		if err != nil || member == nil {
			slog.Warn("project member lookup failed", "project_id", project.ID, "user_id", id, "error", err)
			continue
		}
		projectID := project.ID
		w.record(ctx, &models.Notification{
			UserID:           member.ID,
			Type:             models.NotificationProjectUpdate,
			Title:            "Added to project",
			Message:          fmt.Sprintf("%s added you to the project %q", actor.Name, project.Name),
			RelatedProjectID: &projectID,
		})
		w.mailer.ProjectInvitation(member.Email, member.Name, project.ID, project.Name, actor.Name)
	}
}

func (w *WorkNotifier) record(ctx context.Context, n *models.Notification) {
	if err := w.notifications.CreateNotification(ctx, n); err != nil {
		slog.Warn("failed to record notification", "user_id", n.UserID, "type", n.Type, "error", err)
	}
}
