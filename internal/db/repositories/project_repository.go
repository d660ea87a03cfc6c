// project_repository.go implements ProjectRepository: project CRUD, project
// membership, and the owner-or-member visibility query.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/projecthub/projecthub/internal/db/models"
)

const projectColumns = `id, name, description, status, owner_id, created_at, updated_at`

// ProjectRepository handles project database operations
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// CreateProject inserts a project and its initial members in one transaction.
func (r *ProjectRepository) CreateProject(ctx context.Context, p *models.Project, memberIDs []string) error {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	if p.Status == "" {
		p.Status = models.ProjectStatusPlanning
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, status, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.Name, p.Description, p.Status, p.OwnerID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", translateError(err))
	}

	if err := insertProjectMembers(ctx, tx, p.ID, memberIDs, p.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func insertProjectMembers(ctx context.Context, tx *sqlx.Tx, projectID string, memberIDs []string, at time.Time) error {
	if len(memberIDs) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id, added_at)
		SELECT $1, UNNEST($2::uuid[]), $3
		ON CONFLICT DO NOTHING
	`, projectID, pq.Array(memberIDs), at)
	if err != nil {
		return fmt.Errorf("failed to add project members: %w", translateError(err))
	}
	return nil
}

// GetProjectByID retrieves a project by ID
func (r *ProjectRepository) GetProjectByID(ctx context.Context, projectID string) (*models.Project, error) {
	p := &models.Project{}
	err := r.db.GetContext(ctx, p, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", translateError(err))
	}
	return p, nil
}

// GetProjectDetail returns the project populated with owner and members.
func (r *ProjectRepository) GetProjectDetail(ctx context.Context, projectID string) (*models.ProjectDetail, error) {
	p, err := r.GetProjectByID(ctx, projectID)
	if err != nil || p == nil {
		return nil, err
	}
	detail := &models.ProjectDetail{Project: *p, Members: []models.UserSummary{}}

	owner := &models.UserSummary{}
	err = r.db.GetContext(ctx, owner, `SELECT id, name, email FROM users WHERE id = $1`, p.OwnerID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get project owner: %w", err)
	}
	if err == nil {
		detail.Owner = owner
	}

	err = r.db.SelectContext(ctx, &detail.Members, `
		SELECT u.id, u.name, u.email
		FROM project_members pm
		JOIN users u ON u.id = pm.user_id
		WHERE pm.project_id = $1
		ORDER BY pm.added_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	return detail, nil
}

// ListProjectsForUser returns projects the user owns or is a member of.
func (r *ProjectRepository) ListProjectsForUser(ctx context.Context, userID string) ([]*models.Project, error) {
	projects := make([]*models.Project, 0)
	err := r.db.SelectContext(ctx, &projects, `
		SELECT p.id, p.name, p.description, p.status, p.owner_id, p.created_at, p.updated_at
		FROM projects p
		WHERE p.owner_id = $1
		   OR EXISTS (SELECT 1 FROM project_members pm WHERE pm.project_id = p.id AND pm.user_id = $1)
		ORDER BY p.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// IsProjectMember reports whether userID owns or belongs to the project.
func (r *ProjectRepository) IsProjectMember(ctx context.Context, projectID, userID string) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM projects WHERE id = $1 AND owner_id = $2
			UNION ALL
			SELECT 1 FROM project_members WHERE project_id = $1 AND user_id = $2
		)
	`, projectID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check project membership: %w", err)
	}
	return ok, nil
}

// UpdateProject writes name, description and status. When memberIDs is non-nil
// the member list is replaced and the ids that were not members before are returned.
func (r *ProjectRepository) UpdateProject(ctx context.Context, p *models.Project, memberIDs []string) ([]string, error) {
	p.UpdatedAt = time.Now()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE projects SET name = $2, description = $3, status = $4, updated_at = $5
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.Status, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", translateError(err))
	}
	if err := requireOneRow(res, ErrNotFound); err != nil {
		return nil, err
	}

	var added []string
	if memberIDs != nil {
		var existing []string
		if err := tx.SelectContext(ctx, &existing,
			`SELECT user_id FROM project_members WHERE project_id = $1`, p.ID); err != nil {
			return nil, fmt.Errorf("failed to read project members: %w", err)
		}
		had := make(map[string]bool, len(existing))
		for _, id := range existing {
			had[id] = true
		}
		for _, id := range memberIDs {
			if !had[id] {
				added = append(added, id)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM project_members WHERE project_id = $1 AND NOT (user_id = ANY($2::uuid[]))`,
			p.ID, pq.Array(memberIDs)); err != nil {
			return nil, fmt.Errorf("failed to prune project members: %w", err)
		}
		if err := insertProjectMembers(ctx, tx, p.ID, memberIDs, p.UpdatedAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit project update: %w", err)
	}
	return added, nil
}

// DeleteProject deletes a project; its tasks cascade.
func (r *ProjectRepository) DeleteProject(ctx context.Context, projectID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireOneRow(res, ErrNotFound)
}
