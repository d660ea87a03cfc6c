package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecthub/projecthub/internal/db/models"
)

func newProjectFor(t *testing.T, f *workFixture, owner *models.User, members ...string) *models.ProjectDetail {
	t.Helper()
	p, err := f.projectsSvc.CreateProject(context.Background(), owner, ProjectInput{Name: "Launch", Members: members})
	require.NoError(t, err)
	return p
}

func TestCreateTask_DefaultsAndAssignment(t *testing.T) {
	f := newWorkFixture()
	ctx := context.Background()
	owner := f.users.add("Owner", "owner@example.com", "member")
	bob := f.users.add("Bob", "bob@example.com", "member")
	p := newProjectFor(t, f, owner, bob.ID)
	before := len(f.mailer.sent())

	task, err := f.tasksSvc.CreateTask(ctx, owner, TaskInput{Title: "Write docs", ProjectID: p.ID, AssignedTo: &bob.ID})
	require.NoError(t, err)
	assert.Equal(t, "todo", task.Status)
	assert.Equal(t, "medium", task.Priority)
	require.NotNil(t, task.ProjectName)
	assert.Equal(t, "Launch", *task.ProjectName)

	calls := f.mailer.sent()[before:]
	require.Len(t, calls, 1)
	assert.Equal(t, "task_assigned", calls[0].Kind)
	assert.Equal(t, []string{"Bob", task.ID, "Write docs", "Launch"}, calls[0].Args)
}

func TestCreateTask_Validation(t *testing.T) {
	f := newWorkFixture()
	ctx := context.Background()
	owner := f.users.add("Owner", "owner@example.com", "member")
	p := newProjectFor(t, f, owner)
	yesterday := time.Now().Add(-48 * time.Hour)

	cases := []struct {
		in    TaskInput
		field string
	}{
		{TaskInput{Title: "Docs"}, "project"},
		{TaskInput{Title: "ab", ProjectID: p.ID}, "title"},
		{TaskInput{Title: "Docs", ProjectID: p.ID, Status: "later"}, "status"},
		{TaskInput{Title: "Docs", ProjectID: p.ID, Priority: "p0"}, "priority"},
		{TaskInput{Title: "Docs", ProjectID: p.ID, DueDate: &yesterday}, "dueDate"},
	}
	for _, tc := range cases {
		_, err := f.tasksSvc.CreateTask(ctx, owner, tc.in)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, tc.field)
		assert.Equal(t, tc.field, ve.Field)
	}

	_, err := f.tasksSvc.CreateTask(ctx, owner, TaskInput{Title: "Docs", ProjectID: "missing"})
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestTask_Access(t *testing.T) {
	f := newWorkFixture()
	ctx := context.Background()
	owner := f.users.add("Owner", "owner@example.com", "member")
	bob := f.users.add("Bob", "bob@example.com", "member")
	outsider := f.users.add("Out", "out@example.com", "member")
	p := newProjectFor(t, f, owner)

	task, err := f.tasksSvc.CreateTask(ctx, owner, TaskInput{Title: "Docs", ProjectID: p.ID, AssignedTo: &bob.ID})
	require.NoError(t, err)

	_, err = f.tasksSvc.CreateTask(ctx, outsider, TaskInput{Title: "Docs", ProjectID: p.ID})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.tasksSvc.GetTask(ctx, outsider, task.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// The assignee is not a project member but may read the task and move it.
	_, err = f.tasksSvc.GetTask(ctx, bob, task.ID)
	require.NoError(t, err)
	moved, err := f.tasksSvc.UpdateStatus(ctx, bob, task.ID, "in-progress")
	require.NoError(t, err)
	assert.Equal(t, "in-progress", moved.Status)
	assert.ErrorIs(t, f.tasksSvc.DeleteTask(ctx, bob, task.ID), ErrForbidden)

	// Editing anything beyond status needs project access.
	_, err = f.tasksSvc.UpdateTask(ctx, bob, task.ID, TaskUpdate{
		Title:      strp("Hijacked title"),
		Priority:   strp("urgent"),
		AssignedTo: &outsider.ID,
	})
	assert.ErrorIs(t, err, ErrForbidden)
	unchanged, err := f.tasksSvc.GetTask(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Docs", unchanged.Title)
	assert.Equal(t, "medium", unchanged.Priority)
	require.NotNil(t, unchanged.AssignedTo)
	assert.Equal(t, bob.ID, *unchanged.AssignedTo)

	_, err = f.tasksSvc.UpdateStatus(ctx, owner, task.ID, "finished")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	list, err := f.tasksSvc.ListTasks(ctx, bob, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = f.tasksSvc.ListTasks(ctx, outsider, "")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, f.tasksSvc.DeleteTask(ctx, owner, task.ID))
	_, err = f.tasksSvc.GetTask(ctx, owner, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestUpdateTask_NotifiesNewAssigneeOnly(t *testing.T) {
	f := newWorkFixture()
	ctx := context.Background()
	owner := f.users.add("Owner", "owner@example.com", "member")
	bob := f.users.add("Bob", "bob@example.com", "member")
	cy := f.users.add("Cy", "cy@example.com", "member")
	p := newProjectFor(t, f, owner)

	task, err := f.tasksSvc.CreateTask(ctx, owner, TaskInput{Title: "Docs", ProjectID: p.ID, AssignedTo: &bob.ID})
	require.NoError(t, err)
	before := len(f.mailer.sent())

	_, err = f.tasksSvc.UpdateTask(ctx, owner, task.ID, TaskUpdate{Title: strp("Docs v2"), AssignedTo: &bob.ID})
	require.NoError(t, err)
	assert.Len(t, f.mailer.sent(), before, "same assignee is not notified again")

	updated, err := f.tasksSvc.UpdateTask(ctx, owner, task.ID, TaskUpdate{AssignedTo: &cy.ID, Priority: strp("urgent")})
	require.NoError(t, err)
	assert.Equal(t, "urgent", updated.Priority)
	calls := f.mailer.sent()[before:]
	require.Len(t, calls, 1)
	assert.Equal(t, cy.Email, calls[0].To)

	cleared, err := f.tasksSvc.UpdateTask(ctx, owner, task.ID, TaskUpdate{AssignedTo: strp("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.AssignedTo)
}
