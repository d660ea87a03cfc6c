package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
)

// ProjectService manages projects and their member lists.
type ProjectService struct {
	projects ProjectStore
	notifier *WorkNotifier
}

// NewProjectService creates a ProjectService.
func NewProjectService(projects ProjectStore, notifier *WorkNotifier) *ProjectService {
	return &ProjectService{projects: projects, notifier: notifier}
}

// ProjectInput carries the fields of a new project.
type ProjectInput struct {
	Name        string
	Description *string
	Status      string
	Members     []string
}

// ProjectUpdate carries a partial project update. A nil Members leaves the
// member list unchanged; an empty one clears it.
type ProjectUpdate struct {
	Name        *string
	Description *string
	Status      *string
	Members     []string
}

// CreateProject creates a project owned by actor and notifies its initial members.
func (s *ProjectService) CreateProject(ctx context.Context, actor *models.User, in ProjectInput) (*models.ProjectDetail, error) {
	p := &models.Project{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Status:      in.Status,
		OwnerID:     actor.ID,
	}
	if p.Status == "" {
		p.Status = models.ProjectStatusPlanning
	}
	if err := validateProject(p); err != nil {
		return nil, err
	}
	members := dedupe(in.Members)
	if err := s.projects.CreateProject(ctx, p, members); err != nil {
		return nil, err
	}
	s.notifier.ProjectMembersAdded(ctx, actor, p, members)
	return s.projects.GetProjectDetail(ctx, p.ID)
}

// GetProject returns a project visible to actor.
func (s *ProjectService) GetProject(ctx context.Context, actor *models.User, projectID string) (*models.ProjectDetail, error) {
	detail, err := s.projects.GetProjectDetail(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, ErrProjectNotFound
	}
	if err := s.authorizeView(ctx, actor, &detail.Project); err != nil {
		return nil, err
	}
	return detail, nil
}

// ListProjects returns the projects actor owns or belongs to.
func (s *ProjectService) ListProjects(ctx context.Context, actor *models.User) ([]*models.Project, error) {
	return s.projects.ListProjectsForUser(ctx, actor.ID)
}

// UpdateProject applies a partial update. Only the owner or a global admin may
// update; newly added members are notified.
func (s *ProjectService) UpdateProject(ctx context.Context, actor *models.User, projectID string, in ProjectUpdate) (*models.ProjectDetail, error) {
	p, err := s.loadModifiable(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = in.Description
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if err := validateProject(p); err != nil {
		return nil, err
	}

	var members []string
	if in.Members != nil {
		members = dedupe(in.Members)
	}
	added, err := s.projects.UpdateProject(ctx, p, members)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	s.notifier.ProjectMembersAdded(ctx, actor, p, added)
	return s.projects.GetProjectDetail(ctx, p.ID)
}

// DeleteProject deletes a project and, through the schema, its tasks.
func (s *ProjectService) DeleteProject(ctx context.Context, actor *models.User, projectID string) error {
	if _, err := s.loadModifiable(ctx, actor, projectID); err != nil {
		return err
	}
	err := s.projects.DeleteProject(ctx, projectID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrProjectNotFound
	}
	return err
}

func (s *ProjectService) loadModifiable(ctx context.Context, actor *models.User, projectID string) (*models.Project, error) {
	p, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}
	if !CanModifyProject(actor, p) {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *ProjectService) authorizeView(ctx context.Context, actor *models.User, p *models.Project) error {
	ok, err := canAccessProject(ctx, s.projects, actor, p)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// canAccessProject reports whether actor owns, belongs to, or administers p.
func canAccessProject(ctx context.Context, projects ProjectStore, actor *models.User, p *models.Project) (bool, error) {
	if CanModifyProject(actor, p) {
		return true, nil
	}
	return projects.IsProjectMember(ctx, p.ID, actor.ID)
}

func validateProject(p *models.Project) error {
	if n := utf8.RuneCountInString(p.Name); n < 3 || n > 100 {
		return invalid("name", "name must be between 3 and 100 characters")
	}
	if p.Description != nil && utf8.RuneCountInString(*p.Description) > 500 {
		return invalid("description", "description cannot exceed 500 characters")
	}
	if !models.ValidProjectStatus(p.Status) {
		return invalid("status", "status must be one of planning, active, on-hold, completed, cancelled")
	}
	return nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
