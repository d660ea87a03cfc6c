// Package models - activity_log.go defines the ActivityLog model recording
// authenticated write requests: actor, action, affected resource, and client IP.
package models

import "time"

// ActivityLog represents one recorded request
type ActivityLog struct {
	ID           string                 `json:"id"`
	UserID       *string                `json:"userId,omitempty"`
	Action       string                 `json:"action"`                 // "POST /api/teams/:id/invite", "team.member_removed"
	ResourceType *string                `json:"resourceType,omitempty"` // "team", "project", "task", "user", "notification"
	ResourceID   *string                `json:"resourceId,omitempty"`   // UUID of affected resource
	IPAddress    *string                `json:"ipAddress,omitempty"`
	StatusCode   int                    `json:"statusCode"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"` // JSONB
	CreatedAt    time.Time              `json:"createdAt"`
}

// DashboardStats summarises a user's projects and assigned tasks.
type DashboardStats struct {
	TotalProjects  int `db:"total_projects" json:"totalProjects"`
	TotalTasks     int `db:"total_tasks" json:"totalTasks"`
	PendingTasks   int `db:"pending_tasks" json:"pendingTasks"`
	CompletedTasks int `db:"completed_tasks" json:"completedTasks"`
}
