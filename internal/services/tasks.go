package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
)

// TaskService manages tasks. Access to a task follows access to its project;
// the assignee may always read it and move its status, but editing any other
// field requires project access.
type TaskService struct {
	tasks    TaskStore
	projects ProjectStore
	notifier *WorkNotifier
	now      func() time.Time
}

// NewTaskService creates a TaskService.
func NewTaskService(tasks TaskStore, projects ProjectStore, notifier *WorkNotifier) *TaskService {
	return &TaskService{tasks: tasks, projects: projects, notifier: notifier, now: time.Now}
}

// TaskInput carries the fields of a new task.
type TaskInput struct {
	Title       string
	Description *string
	Status      string
	Priority    string
	ProjectID   string
	AssignedTo  *string
	DueDate     *time.Time
}

// TaskUpdate carries a partial task update. An AssignedTo pointing at the
// empty string unassigns the task.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	AssignedTo  *string
	DueDate     *time.Time
}

// CreateTask creates a task in a project actor can access and notifies the assignee.
func (s *TaskService) CreateTask(ctx context.Context, actor *models.User, in TaskInput) (*models.TaskDetail, error) {
	if strings.TrimSpace(in.ProjectID) == "" {
		return nil, invalid("project", "project is required")
	}
	project, err := s.accessibleProject(ctx, actor, in.ProjectID)
	if err != nil {
		return nil, err
	}

	t := &models.Task{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		ProjectID:   project.ID,
		AssignedTo:  nonEmpty(in.AssignedTo),
		DueDate:     in.DueDate,
	}
	if t.Status == "" {
		t.Status = models.TaskStatusTodo
	}
	if t.Priority == "" {
		t.Priority = models.TaskPriorityMedium
	}
	if err := validateTask(t); err != nil {
		return nil, err
	}
	if t.DueDate != nil && t.DueDate.Before(s.now().Truncate(24*time.Hour)) {
		return nil, invalid("dueDate", "due date cannot be in the past")
	}

	if err := s.tasks.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	s.notifier.TaskAssigned(ctx, actor, t, project.Name)
	return s.tasks.GetTaskByID(ctx, t.ID)
}

// ListTasks returns tasks visible to actor, optionally narrowed to one project.
// Global admins see every task.
func (s *TaskService) ListTasks(ctx context.Context, actor *models.User, projectID string) ([]*models.TaskDetail, error) {
	f := repositories.TaskFilters{ProjectID: projectID}
	if !actor.IsAdmin() {
		f.VisibleTo = actor.ID
	}
	return s.tasks.ListTasks(ctx, f)
}

// GetTask returns a task visible to actor.
func (s *TaskService) GetTask(ctx context.Context, actor *models.User, taskID string) (*models.TaskDetail, error) {
	t, _, err := s.load(ctx, actor, taskID, true)
	return t, err
}

// UpdateTask applies a partial update and notifies a newly assigned user.
func (s *TaskService) UpdateTask(ctx context.Context, actor *models.User, taskID string, in TaskUpdate) (*models.TaskDetail, error) {
	detail, project, err := s.load(ctx, actor, taskID, false)
	if err != nil {
		return nil, err
	}
	t := detail.Task
	previous := t.AssignedTo

	if in.Title != nil {
		t.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		t.Description = in.Description
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.AssignedTo != nil {
		t.AssignedTo = nonEmpty(in.AssignedTo)
	}
	if in.DueDate != nil {
		t.DueDate = in.DueDate
	}
	if err := validateTask(&t); err != nil {
		return nil, err
	}

	err = s.tasks.UpdateTask(ctx, &t)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.AssignedTo != nil && (previous == nil || *previous != *t.AssignedTo) {
		s.notifier.TaskAssigned(ctx, actor, &t, project.Name)
	}
	return s.tasks.GetTaskByID(ctx, t.ID)
}

// UpdateStatus moves a task to a new status.
func (s *TaskService) UpdateStatus(ctx context.Context, actor *models.User, taskID, status string) (*models.TaskDetail, error) {
	if !models.ValidTaskStatus(status) {
		return nil, invalid("status", "status must be one of todo, in-progress, review, done, blocked")
	}
	if _, _, err := s.load(ctx, actor, taskID, true); err != nil {
		return nil, err
	}
	err := s.tasks.UpdateTaskStatus(ctx, taskID, status)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.tasks.GetTaskByID(ctx, taskID)
}

// DeleteTask deletes a task. The assignee alone may not delete it.
func (s *TaskService) DeleteTask(ctx context.Context, actor *models.User, taskID string) error {
	t, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrTaskNotFound
	}
	if _, err := s.accessibleProject(ctx, actor, t.ProjectID); err != nil {
		return err
	}
	err = s.tasks.DeleteTask(ctx, taskID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrTaskNotFound
	}
	return err
}

// load fetches a task and its project for an actor with project access. With
// allowAssignee the task's assignee is let through as well.
func (s *TaskService) load(ctx context.Context, actor *models.User, taskID string, allowAssignee bool) (*models.TaskDetail, *models.Project, error) {
	t, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	if t == nil {
		return nil, nil, ErrTaskNotFound
	}
	project, err := s.projects.GetProjectByID(ctx, t.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	if project == nil {
		return nil, nil, ErrProjectNotFound
	}
	if allowAssignee && t.AssignedTo != nil && *t.AssignedTo == actor.ID {
		return t, project, nil
	}
	ok, err := canAccessProject(ctx, s.projects, actor, project)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrForbidden
	}
	return t, project, nil
}

func (s *TaskService) accessibleProject(ctx context.Context, actor *models.User, projectID string) (*models.Project, error) {
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	ok, err := canAccessProject(ctx, s.projects, actor, project)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return project, nil
}

func validateTask(t *models.Task) error {
	if n := utf8.RuneCountInString(t.Title); n < 3 || n > 200 {
		return invalid("title", "title must be between 3 and 200 characters")
	}
	if t.Description != nil && utf8.RuneCountInString(*t.Description) > 1000 {
		return invalid("description", "description cannot exceed 1000 characters")
	}
	if !models.ValidTaskStatus(t.Status) {
		return invalid("status", "status must be one of todo, in-progress, review, done, blocked")
	}
	if !models.ValidTaskPriority(t.Priority) {
		return invalid("priority", "priority must be one of low, medium, high, urgent")
	}
	return nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
