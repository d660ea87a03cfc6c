// Package work implements the project, task, notification, dashboard and
// activity endpoints.
package work

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/response"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/middleware"
	"github.com/projecthub/projecthub/internal/services"
)

// ProjectManager is implemented by *services.ProjectService.
type ProjectManager interface {
	CreateProject(ctx context.Context, actor *models.User, in services.ProjectInput) (*models.ProjectDetail, error)
	GetProject(ctx context.Context, actor *models.User, projectID string) (*models.ProjectDetail, error)
	ListProjects(ctx context.Context, actor *models.User) ([]*models.Project, error)
	UpdateProject(ctx context.Context, actor *models.User, projectID string, in services.ProjectUpdate) (*models.ProjectDetail, error)
	DeleteProject(ctx context.Context, actor *models.User, projectID string) error
}

// ProjectHandlers serves /api/projects
type ProjectHandlers struct {
	projects ProjectManager
}

// NewProjectHandlers creates a new ProjectHandlers instance
func NewProjectHandlers(projects ProjectManager) *ProjectHandlers {
	return &ProjectHandlers{projects: projects}
}

// ProjectRequest is the project creation payload
type ProjectRequest struct {
	Name        string   `json:"name" binding:"required,min=3,max=100"`
	Description *string  `json:"description" binding:"omitempty,max=500"`
	Status      string   `json:"status" binding:"omitempty,oneof=planning active on-hold completed cancelled"`
	Members     []string `json:"members" binding:"omitempty,dive,uuid"`
}

// UpdateProjectRequest is a partial project update. Members, when present,
// replaces the member list.
type UpdateProjectRequest struct {
	Name        *string  `json:"name" binding:"omitempty,min=3,max=100"`
	Description *string  `json:"description" binding:"omitempty,max=500"`
	Status      *string  `json:"status" binding:"omitempty,oneof=planning active on-hold completed cancelled"`
	Members     []string `json:"members" binding:"omitempty,dive,uuid"`
}

// ListProjectsHandler lists projects the caller owns or belongs to
// GET /api/projects
func (h *ProjectHandlers) ListProjectsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		projects, err := h.projects.ListProjects(c.Request.Context(), middleware.CurrentUser(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, projects)
	}
}

// CreateProjectHandler creates a project owned by the caller
// POST /api/projects
func (h *ProjectHandlers) CreateProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
		project, err := h.projects.CreateProject(c.Request.Context(), middleware.CurrentUser(c), services.ProjectInput{
			Name:        req.Name,
			Description: req.Description,
			Status:      req.Status,
			Members:     req.Members,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, project)
	}
}

// GetProjectHandler returns a populated project
// GET /api/projects/:id
func (h *ProjectHandlers) GetProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		project, err := h.projects.GetProject(c.Request.Context(), middleware.CurrentUser(c), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, project)
	}
}

// UpdateProjectHandler updates a project (owner or global admin)
// PUT /api/projects/:id
func (h *ProjectHandlers) UpdateProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		var req UpdateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
		project, err := h.projects.UpdateProject(c.Request.Context(), middleware.CurrentUser(c), id, services.ProjectUpdate{
			Name:        req.Name,
			Description: req.Description,
			Status:      req.Status,
			Members:     req.Members,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, project)
	}
}

// DeleteProjectHandler deletes a project and its tasks
// DELETE /api/projects/:id
func (h *ProjectHandlers) DeleteProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		if err := h.projects.DeleteProject(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
			response.Error(c, err)
			return
		}
		response.Message(c, "Project deleted successfully")
	}
}
