// task_repository.go implements TaskRepository: task CRUD with project and
// assignee display fields joined in.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/projecthub/projecthub/internal/db/models"
)

const taskDetailSelect = `
	SELECT t.id, t.title, t.description, t.status, t.priority, t.project_id, t.assigned_to,
	       t.due_date, t.created_at, t.updated_at,
	       p.name AS project_name, u.name AS assignee_name, u.email AS assignee_email
	FROM tasks t
	JOIN projects p ON p.id = t.project_id
	LEFT JOIN users u ON u.id = t.assigned_to
`

// TaskRepository handles task database operations
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// TaskFilters narrows ListTasks. Empty fields are ignored.
type TaskFilters struct {
	ProjectID  string
	AssignedTo string
	// VisibleTo restricts results to projects the user owns or belongs to.
	VisibleTo string
}

// CreateTask inserts a task, assigning its ID and timestamps.
func (r *TaskRepository) CreateTask(ctx context.Context, t *models.Task) error {
	t.ID = uuid.New().String()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	if t.Status == "" {
		t.Status = models.TaskStatusTodo
	}
	if t.Priority == "" {
		t.Priority = models.TaskPriorityMedium
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, status, priority, project_id, assigned_to, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ID, t.Title, t.Description, t.Status, t.Priority, t.ProjectID, t.AssignedTo, t.DueDate, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", translateError(err))
	}
	return nil
}

// GetTaskByID returns the task with display fields, or nil.
func (r *TaskRepository) GetTaskByID(ctx context.Context, taskID string) (*models.TaskDetail, error) {
	t := &models.TaskDetail{}
	err := r.db.GetContext(ctx, t, taskDetailSelect+` WHERE t.id = $1`, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", translateError(err))
	}
	return t, nil
}

// ListTasks returns tasks matching the filters, newest first.
func (r *TaskRepository) ListTasks(ctx context.Context, f TaskFilters) ([]*models.TaskDetail, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.ProjectID != "" {
		args = append(args, f.ProjectID)
		where = append(where, fmt.Sprintf("t.project_id = $%d", len(args)))
	}
	if f.AssignedTo != "" {
		args = append(args, f.AssignedTo)
		where = append(where, fmt.Sprintf("t.assigned_to = $%d", len(args)))
	}
	if f.VisibleTo != "" {
		args = append(args, f.VisibleTo)
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(p.owner_id = $%d OR t.assigned_to = $%d OR EXISTS (SELECT 1 FROM project_members pm WHERE pm.project_id = p.id AND pm.user_id = $%d))",
			n, n, n))
	}

	query := taskDetailSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.created_at DESC"

	tasks := make([]*models.TaskDetail, 0)
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", translateError(err))
	}
	return tasks, nil
}

// UpdateTask writes every mutable field of the task.
func (r *TaskRepository) UpdateTask(ctx context.Context, t *models.Task) error {
	t.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5, assigned_to = $6, due_date = $7, updated_at = $8
		WHERE id = $1
	`, t.ID, t.Title, t.Description, t.Status, t.Priority, t.AssignedTo, t.DueDate, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", translateError(err))
	}
	return requireOneRow(res, ErrNotFound)
}

// UpdateTaskStatus changes only the status column.
func (r *TaskRepository) UpdateTaskStatus(ctx context.Context, taskID, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status = $2, updated_at = $3 WHERE id = $1`, taskID, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", translateError(err))
	}
	return requireOneRow(res, ErrNotFound)
}

// DeleteTask deletes a task.
func (r *TaskRepository) DeleteTask(ctx context.Context, taskID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return requireOneRow(res, ErrNotFound)
}

// GetDashboardStats counts the user's projects and assigned tasks.
func (r *TaskRepository) GetDashboardStats(ctx context.Context, userID string) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}
	err := r.db.GetContext(ctx, stats, `
		SELECT
			(SELECT COUNT(*) FROM projects p
			  WHERE p.owner_id = $1
			     OR EXISTS (SELECT 1 FROM project_members pm WHERE pm.project_id = p.id AND pm.user_id = $1)
			) AS total_projects,
			(SELECT COUNT(*) FROM tasks WHERE assigned_to = $1) AS total_tasks,
			(SELECT COUNT(*) FROM tasks WHERE assigned_to = $1 AND status <> 'done') AS pending_tasks,
			(SELECT COUNT(*) FROM tasks WHERE assigned_to = $1 AND status = 'done') AS completed_tasks
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard stats: %w", err)
	}
	return stats, nil
}
