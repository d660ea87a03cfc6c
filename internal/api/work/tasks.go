package work

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/response"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/middleware"
	"github.com/projecthub/projecthub/internal/services"
)

// TaskManager is implemented by *services.TaskService.
type TaskManager interface {
	CreateTask(ctx context.Context, actor *models.User, in services.TaskInput) (*models.TaskDetail, error)
	ListTasks(ctx context.Context, actor *models.User, projectID string) ([]*models.TaskDetail, error)
	GetTask(ctx context.Context, actor *models.User, taskID string) (*models.TaskDetail, error)
	UpdateTask(ctx context.Context, actor *models.User, taskID string, in services.TaskUpdate) (*models.TaskDetail, error)
	UpdateStatus(ctx context.Context, actor *models.User, taskID, status string) (*models.TaskDetail, error)
	DeleteTask(ctx context.Context, actor *models.User, taskID string) error
}

// TaskHandlers serves /api/tasks
type TaskHandlers struct {
	tasks TaskManager
}

// NewTaskHandlers creates a new TaskHandlers instance
func NewTaskHandlers(tasks TaskManager) *TaskHandlers {
	return &TaskHandlers{tasks: tasks}
}

// TaskRequest is the task creation payload. DueDate is RFC 3339.
type TaskRequest struct {
	Title       string     `json:"title" binding:"required,min=3,max=200"`
	Description *string    `json:"description" binding:"omitempty,max=1000"`
	Status      string     `json:"status" binding:"omitempty,oneof=todo in-progress review done blocked"`
	Priority    string     `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	Project     string     `json:"project" binding:"required,uuid"`
	AssignedTo  *string    `json:"assignedTo" binding:"omitempty,uuid"`
	DueDate     *time.Time `json:"dueDate"`
}

// UpdateTaskRequest is a partial task update. An empty assignedTo unassigns.
type UpdateTaskRequest struct {
	Title       *string    `json:"title" binding:"omitempty,min=3,max=200"`
	Description *string    `json:"description" binding:"omitempty,max=1000"`
	Status      *string    `json:"status" binding:"omitempty,oneof=todo in-progress review done blocked"`
	Priority    *string    `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	AssignedTo  *string    `json:"assignedTo"`
	DueDate     *time.Time `json:"dueDate"`
}

// StatusRequest moves a task to a new status
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=todo in-progress review done blocked"`
}

// ListTasksHandler lists visible tasks, optionally for one project
// GET /api/tasks?projectId=
func (h *TaskHandlers) ListTasksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks, err := h.tasks.ListTasks(c.Request.Context(), middleware.CurrentUser(c), c.Query("projectId"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, tasks)
	}
}

// CreateTaskHandler creates a task and notifies its assignee
// POST /api/tasks
func (h *TaskHandlers) CreateTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
		task, err := h.tasks.CreateTask(c.Request.Context(), middleware.CurrentUser(c), services.TaskInput{
			Title:       req.Title,
			Description: req.Description,
			Status:      req.Status,
			Priority:    req.Priority,
			ProjectID:   req.Project,
			AssignedTo:  req.AssignedTo,
			DueDate:     req.DueDate,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, task)
	}
}

// GetTaskHandler returns one task
// GET /api/tasks/:id
func (h *TaskHandlers) GetTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		task, err := h.tasks.GetTask(c.Request.Context(), middleware.CurrentUser(c), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, task)
	}
}

// UpdateTaskHandler applies a partial update
// PUT /api/tasks/:id
func (h *TaskHandlers) UpdateTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		var req UpdateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
		task, err := h.tasks.UpdateTask(c.Request.Context(), middleware.CurrentUser(c), id, services.TaskUpdate{
			Title:       req.Title,
			Description: req.Description,
			Status:      req.Status,
			Priority:    req.Priority,
			AssignedTo:  req.AssignedTo,
			DueDate:     req.DueDate,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, task)
	}
}

// UpdateStatusHandler changes only the status
// PATCH /api/tasks/:id/status
func (h *TaskHandlers) UpdateStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		var req StatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
		task, err := h.tasks.UpdateStatus(c.Request.Context(), middleware.CurrentUser(c), id, req.Status)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, task)
	}
}

// DeleteTaskHandler deletes a task
// DELETE /api/tasks/:id
func (h *TaskHandlers) DeleteTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		if err := h.tasks.DeleteTask(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
			response.Error(c, err)
			return
		}
		response.Message(c, "Task deleted successfully")
	}
}
