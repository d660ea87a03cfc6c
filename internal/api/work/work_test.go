package work

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---------------------------------------------------------------------------
// Test setup helpers
// ---------------------------------------------------------------------------

const (
	actorID   = "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d"
	projectID = "6f5e4d3c-2b1a-4098-b7a6-5f4e3d2c1b0a"
	taskID    = "c3d4e5f6-a7b8-4c9d-8e0f-1a2b3c4d5e6f"
	assignee  = "d4e5f6a7-b8c9-4d0e-9f1a-2b3c4d5e6f7a"
)

func actorMiddleware(c *gin.Context) {
	c.Set("user", &models.User{ID: actorID, Role: "member"})
	c.Next()
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getJSON(w *httptest.ResponseRecorder) map[string]interface{} {
	var m map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &m)
	return m
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

type stubProjects struct {
	err     error
	created services.ProjectInput
	updated services.ProjectUpdate
}

func (s *stubProjects) CreateProject(_ context.Context, actor *models.User, in services.ProjectInput) (*models.ProjectDetail, error) {
	s.created = in
	if s.err != nil {
		return nil, s.err
	}
	return &models.ProjectDetail{Project: models.Project{ID: projectID, Name: in.Name, OwnerID: actor.ID}}, nil
}

func (s *stubProjects) GetProject(_ context.Context, _ *models.User, id string) (*models.ProjectDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.ProjectDetail{Project: models.Project{ID: id}}, nil
}

func (s *stubProjects) ListProjects(_ context.Context, _ *models.User) ([]*models.Project, error) {
	return []*models.Project{{ID: projectID}}, s.err
}

func (s *stubProjects) UpdateProject(_ context.Context, _ *models.User, id string, in services.ProjectUpdate) (*models.ProjectDetail, error) {
	s.updated = in
	if s.err != nil {
		return nil, s.err
	}
	return &models.ProjectDetail{Project: models.Project{ID: id}}, nil
}

func (s *stubProjects) DeleteProject(_ context.Context, _ *models.User, _ string) error {
	return s.err
}

func newProjectRouter(stub *stubProjects) *gin.Engine {
	h := NewProjectHandlers(stub)
	r := gin.New()
	r.Use(actorMiddleware)
	r.GET("/projects", h.ListProjectsHandler())
	r.POST("/projects", h.CreateProjectHandler())
	r.GET("/projects/:id", h.GetProjectHandler())
	r.PUT("/projects/:id", h.UpdateProjectHandler())
	r.DELETE("/projects/:id", h.DeleteProjectHandler())
	return r
}

func TestCreateProjectHandler(t *testing.T) {
	stub := &stubProjects{}
	w := do(newProjectRouter(stub), "POST", "/projects", map[string]interface{}{
		"name": "Website", "members": []string{assignee},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if stub.created.Name != "Website" || len(stub.created.Members) != 1 {
		t.Errorf("input = %+v", stub.created)
	}
}

func TestCreateProjectHandler_Validation(t *testing.T) {
	tests := []map[string]interface{}{
		{"name": "ab"},
		{"name": "Website", "status": "archived"},
		{"name": "Website", "members": []string{"nope"}},
	}
	for _, body := range tests {
		w := do(newProjectRouter(&stubProjects{}), "POST", "/projects", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%v: status = %d, want 400", body, w.Code)
		}
	}
}

func TestUpdateProjectHandler_NilMembersLeavesListAlone(t *testing.T) {
	stub := &stubProjects{}
	w := do(newProjectRouter(stub), "PUT", "/projects/"+projectID, map[string]string{"status": "active"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if stub.updated.Members != nil {
		t.Errorf("members = %v, want nil", stub.updated.Members)
	}
	if stub.updated.Status == nil || *stub.updated.Status != "active" {
		t.Errorf("status = %v", stub.updated.Status)
	}
}

func TestProjectHandlers_Errors(t *testing.T) {
	tests := []struct {
		method string
		err    error
		status int
	}{
		{"GET", services.ErrProjectNotFound, http.StatusNotFound},
		{"GET", services.ErrForbidden, http.StatusForbidden},
		{"DELETE", services.ErrForbidden, http.StatusForbidden},
		{"DELETE", nil, http.StatusOK},
	}
	for _, tt := range tests {
		w := do(newProjectRouter(&stubProjects{err: tt.err}), tt.method, "/projects/"+projectID, nil)
		if w.Code != tt.status {
			t.Errorf("%s %v: status = %d, want %d", tt.method, tt.err, w.Code, tt.status)
		}
	}
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

type stubTasks struct {
	err       error
	created   services.TaskInput
	updated   services.TaskUpdate
	status    string
	projectID string
}

func (s *stubTasks) CreateTask(_ context.Context, _ *models.User, in services.TaskInput) (*models.TaskDetail, error) {
	s.created = in
	if s.err != nil {
		return nil, s.err
	}
	return &models.TaskDetail{Task: models.Task{ID: taskID, Title: in.Title}}, nil
}

func (s *stubTasks) ListTasks(_ context.Context, _ *models.User, projectID string) ([]*models.TaskDetail, error) {
	s.projectID = projectID
	return []*models.TaskDetail{}, s.err
}

func (s *stubTasks) GetTask(_ context.Context, _ *models.User, id string) (*models.TaskDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.TaskDetail{Task: models.Task{ID: id}}, nil
}

func (s *stubTasks) UpdateTask(_ context.Context, _ *models.User, id string, in services.TaskUpdate) (*models.TaskDetail, error) {
	s.updated = in
	if s.err != nil {
		return nil, s.err
	}
	return &models.TaskDetail{Task: models.Task{ID: id}}, nil
}

func (s *stubTasks) UpdateStatus(_ context.Context, _ *models.User, id, status string) (*models.TaskDetail, error) {
	s.status = status
	if s.err != nil {
		return nil, s.err
	}
	return &models.TaskDetail{Task: models.Task{ID: id, Status: status}}, nil
}

func (s *stubTasks) DeleteTask(_ context.Context, _ *models.User, _ string) error {
	return s.err
}

func newTaskRouter(stub *stubTasks) *gin.Engine {
	h := NewTaskHandlers(stub)
	r := gin.New()
	r.Use(actorMiddleware)
	r.GET("/tasks", h.ListTasksHandler())
	r.POST("/tasks", h.CreateTaskHandler())
	r.GET("/tasks/:id", h.GetTaskHandler())
	r.PUT("/tasks/:id", h.UpdateTaskHandler())
	r.PATCH("/tasks/:id/status", h.UpdateStatusHandler())
	r.DELETE("/tasks/:id", h.DeleteTaskHandler())
	return r
}

func TestCreateTaskHandler(t *testing.T) {
	stub := &stubTasks{}
	w := do(newTaskRouter(stub), "POST", "/tasks", map[string]interface{}{
		"title":      "Write docs",
		"project":    projectID,
		"assignedTo": assignee,
		"priority":   "high",
		"dueDate":    "2030-01-02T00:00:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if stub.created.ProjectID != projectID || stub.created.AssignedTo == nil || *stub.created.AssignedTo != assignee {
		t.Errorf("input = %+v", stub.created)
	}
	if stub.created.DueDate == nil || stub.created.DueDate.Year() != 2030 {
		t.Errorf("due date = %v", stub.created.DueDate)
	}
}

func TestCreateTaskHandler_Validation(t *testing.T) {
	tests := []map[string]interface{}{
		{"title": "Write docs"},
		{"title": "Wr", "project": projectID},
		{"title": "Write docs", "project": projectID, "status": "started"},
		{"title": "Write docs", "project": projectID, "priority": "asap"},
	}
	for _, body := range tests {
		stub := &stubTasks{}
		w := do(newTaskRouter(stub), "POST", "/tasks", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%v: status = %d, want 400", body, w.Code)
		}
	}

	stub := &stubTasks{err: &services.ValidationError{Field: "dueDate", Message: "due date cannot be in the past"}}
	w := do(newTaskRouter(stub), "POST", "/tasks", map[string]interface{}{"title": "Write docs", "project": projectID})
	errs, _ := getJSON(w)["errors"].([]interface{})
	if w.Code != http.StatusBadRequest || len(errs) != 1 {
		t.Errorf("service validation: status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestListTasksHandler_ProjectFilter(t *testing.T) {
	stub := &stubTasks{}
	w := do(newTaskRouter(stub), "GET", "/tasks?projectId="+projectID, nil)
	if w.Code != http.StatusOK || stub.projectID != projectID {
		t.Errorf("status = %d projectID = %q", w.Code, stub.projectID)
	}
}

func TestUpdateTaskHandler_Unassign(t *testing.T) {
	stub := &stubTasks{}
	w := do(newTaskRouter(stub), "PUT", "/tasks/"+taskID, map[string]string{"assignedTo": ""})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if stub.updated.AssignedTo == nil || *stub.updated.AssignedTo != "" {
		t.Errorf("assignedTo = %v, want pointer to empty string", stub.updated.AssignedTo)
	}
}

func TestUpdateStatusHandler(t *testing.T) {
	stub := &stubTasks{}
	w := do(newTaskRouter(stub), "PATCH", "/tasks/"+taskID+"/status", map[string]string{"status": "in-progress"})
	if w.Code != http.StatusOK || stub.status != "in-progress" {
		t.Errorf("status = %d recorded = %q", w.Code, stub.status)
	}

	w = do(newTaskRouter(&stubTasks{}), "PATCH", "/tasks/"+taskID+"/status", map[string]string{"status": "finished"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad status: code = %d, want 400", w.Code)
	}

	w = do(newTaskRouter(&stubTasks{err: services.ErrTaskNotFound}), "PATCH", "/tasks/"+taskID+"/status", map[string]string{"status": "done"})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing task: code = %d, want 404", w.Code)
	}
}
