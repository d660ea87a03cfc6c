// Package models - notification.go defines in-app notifications.
package models

import "time"

// Notification types
const (
	NotificationTaskAssigned  = "task_assigned"
	NotificationProjectUpdate = "project_update"
	NotificationMention       = "mention"
	NotificationTeamInvite    = "team_invite"
	NotificationGeneral       = "general"
)

// Notification is a message shown to a single user inside the application.
type Notification struct {
	ID               string    `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"user"`
	Type             string    `db:"type" json:"type"`
	Title            string    `db:"title" json:"title"`
	Message          string    `db:"message" json:"message"`
	Read             bool      `db:"read" json:"read"`
	RelatedProjectID *string   `db:"related_project_id" json:"relatedProject,omitempty"`
	RelatedTaskID    *string   `db:"related_task_id" json:"relatedTask,omitempty"`
	RelatedTeamID    *string   `db:"related_team_id" json:"relatedTeam,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}
