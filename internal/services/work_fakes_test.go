package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
)

type memProjects struct {
	mu       sync.Mutex
	projects map[string]*models.Project
	members  map[string][]string
	seq      int
}

func newMemProjects() *memProjects {
	return &memProjects{projects: map[string]*models.Project{}, members: map[string][]string{}}
}

func (m *memProjects) CreateProject(_ context.Context, p *models.Project, memberIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p.ID = fmt.Sprintf("proj-%d", m.seq)
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.projects[p.ID] = &cp
	m.members[p.ID] = append([]string(nil), memberIDs...)
	return nil
}

func (m *memProjects) GetProjectByID(_ context.Context, projectID string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memProjects) GetProjectDetail(ctx context.Context, projectID string) (*models.ProjectDetail, error) {
	p, _ := m.GetProjectByID(ctx, projectID)
	if p == nil {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &models.ProjectDetail{Project: *p, Members: []models.UserSummary{}}
	for _, id := range m.members[projectID] {
		d.Members = append(d.Members, models.UserSummary{ID: id})
	}
	return d, nil
}

func (m *memProjects) ListProjectsForUser(ctx context.Context, userID string) ([]*models.Project, error) {
	out := make([]*models.Project, 0)
	m.mu.Lock()
	ids := make([]string, 0, len(m.projects))
	for id := range m.projects {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		if ok, _ := m.IsProjectMember(ctx, id, userID); ok {
			p, _ := m.GetProjectByID(ctx, id)
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProjects) IsProjectMember(_ context.Context, projectID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.projects[projectID]; ok && p.OwnerID == userID {
		return true, nil
	}
	for _, id := range m.members[projectID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memProjects) UpdateProject(_ context.Context, p *models.Project, memberIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	m.projects[p.ID] = &cp
	if memberIDs == nil {
		return nil, nil
	}
	had := map[string]bool{}
	for _, id := range m.members[p.ID] {
		had[id] = true
	}
	var added []string
	for _, id := range memberIDs {
		if !had[id] {
			added = append(added, id)
		}
	}
	m.members[p.ID] = append([]string(nil), memberIDs...)
	return added, nil
}

func (m *memProjects) DeleteProject(_ context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[projectID]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.projects, projectID)
	delete(m.members, projectID)
	return nil
}

type memTasks struct {
	mu       sync.Mutex
	tasks    map[string]*models.Task
	projects *memProjects
	seq      int
}

func (m *memTasks) CreateTask(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t.ID = fmt.Sprintf("task-%d", m.seq)
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTasks) GetTaskByID(ctx context.Context, taskID string) (*models.TaskDetail, error) {
	m.mu.Lock()
	t, ok := m.tasks[taskID]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	d := &models.TaskDetail{Task: *t}
	if p, _ := m.projects.GetProjectByID(ctx, t.ProjectID); p != nil {
		d.ProjectName = &p.Name
	}
	return d, nil
}

func (m *memTasks) ListTasks(ctx context.Context, f repositories.TaskFilters) ([]*models.TaskDetail, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.tasks))
	for id, t := range m.tasks {
		if f.ProjectID != "" && t.ProjectID != f.ProjectID {
			continue
		}
		ids = append(ids, id)
	}
	m.mu.Unlock()
	out := make([]*models.TaskDetail, 0)
	for _, id := range ids {
		d, _ := m.GetTaskByID(ctx, id)
		if f.VisibleTo != "" {
			member, _ := m.projects.IsProjectMember(ctx, d.ProjectID, f.VisibleTo)
			assigned := d.AssignedTo != nil && *d.AssignedTo == f.VisibleTo
			if !member && !assigned {
				continue
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *memTasks) UpdateTask(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTasks) UpdateTaskStatus(_ context.Context, taskID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return repositories.ErrNotFound
	}
	t.Status = status
	return nil
}

func (m *memTasks) DeleteTask(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[taskID]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.tasks, taskID)
	return nil
}

type workFixture struct {
	*fixture
	projects    *memProjects
	tasks       *memTasks
	projectsSvc *ProjectService
	tasksSvc    *TaskService
}

func newWorkFixture() *workFixture {
	f := newFixture()
	projects := f.projects
	tasks := &memTasks{tasks: map[string]*models.Task{}, projects: projects}
	notifier := NewWorkNotifier(f.users, f.notifications, f.mailer)
	return &workFixture{
		fixture:     f,
		projects:    projects,
		tasks:       tasks,
		projectsSvc: NewProjectService(projects, notifier),
		tasksSvc:    NewTaskService(tasks, projects, notifier),
	}
}
