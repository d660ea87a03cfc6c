// team_repository.go implements TeamRepository: team CRUD and the membership
// store. Every membership mutation is a single statement against team_members,
// so concurrent adds and removes on the same team cannot overwrite each other.
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

const teamColumns = `id, name, description, owner_id, created_by, created_at, updated_at`

// TeamRepository handles team and team membership database operations
type TeamRepository struct {
	db *sqlx.DB
}

// NewTeamRepository creates a new TeamRepository
func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

// InitialMember is an extra member supplied when a team is created.
type InitialMember struct {
	UserID string
	Role   string
}

// CreateTeam inserts a team, its owner as an admin member, and any initial
// members in one transaction. Initial members that duplicate the owner are ignored.
func (r *TeamRepository) CreateTeam(ctx context.Context, team *models.Team, members []InitialMember) error {
	team.ID = uuid.New().String()
	team.CreatedBy = team.OwnerID
	team.CreatedAt = time.Now()
	team.UpdatedAt = team.CreatedAt

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO teams (id, name, description, owner_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, team.ID, team.Name, team.Description, team.OwnerID, team.CreatedBy, team.CreatedAt, team.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", translateError(err))
	}

	userIDs := []string{team.OwnerID}
	roles := []string{"admin"}
	for _, m := range members {
		if m.UserID == team.OwnerID {
			continue
		}
		userIDs = append(userIDs, m.UserID)
		roles = append(roles, m.Role)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO team_members (team_id, user_id, role, joined_at)
		SELECT $1, m.user_id, m.role, $4
		FROM UNNEST($2::uuid[], $3::text[]) AS m(user_id, role)
		ON CONFLICT (team_id, user_id) DO NOTHING
	`, team.ID, pq.Array(userIDs), pq.Array(roles), team.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add initial team members: %w", translateError(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit team: %w", err)
	}
	return nil
}

// GetTeamByID retrieves a team by ID
func (r *TeamRepository) GetTeamByID(ctx context.Context, teamID string) (*models.Team, error) {
	team := &models.Team{}
	err := r.db.GetContext(ctx, team, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", translateError(err))
	}
	return team, nil
}

// GetTeamDetail returns the team populated with owner, members and projects.
func (r *TeamRepository) GetTeamDetail(ctx context.Context, teamID string) (*models.TeamDetail, error) {
	team, err := r.GetTeamByID(ctx, teamID)
	if err != nil || team == nil {
		return nil, err
	}

	detail := &models.TeamDetail{Team: *team, Members: []models.TeamMemberView{}, Projects: []models.ProjectSummary{}}

	owner := &models.UserSummary{}
	err = r.db.GetContext(ctx, owner, `SELECT id, name, email FROM users WHERE id = $1`, team.OwnerID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get team owner: %w", err)
	}
	if err == nil {
		detail.Owner = owner
	}

	members, err := r.ListMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		detail.Members = append(detail.Members, m.View())
	}

	err = r.db.SelectContext(ctx, &detail.Projects, `
		SELECT p.id, p.name, p.status
		FROM team_projects tp
		JOIN projects p ON p.id = tp.project_id
		WHERE tp.team_id = $1
		ORDER BY p.name
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team projects: %w", err)
	}

	return detail, nil
}

// ListTeamsForUser returns teams the user owns or belongs to.
func (r *TeamRepository) ListTeamsForUser(ctx context.Context, userID string) ([]*models.Team, error) {
	teams := make([]*models.Team, 0)
	err := r.db.SelectContext(ctx, &teams, `
		SELECT t.id, t.name, t.description, t.owner_id, t.created_by, t.created_at, t.updated_at
		FROM teams t
		WHERE t.owner_id = $1
		   OR EXISTS (SELECT 1 FROM team_members tm WHERE tm.team_id = t.id AND tm.user_id = $1)
		ORDER BY t.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

// UpdateTeam writes name and description.
func (r *TeamRepository) UpdateTeam(ctx context.Context, team *models.Team) error {
	team.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE teams SET name = $2, description = $3, updated_at = $4 WHERE id = $1`,
		team.ID, team.Name, team.Description, team.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update team: %w", translateError(err))
	}
	return requireOneRow(res, ErrNotFound)
}

// SetTeamProjects replaces the team's project list.
func (r *TeamRepository) SetTeamProjects(ctx context.Context, teamID string, projectIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM team_projects WHERE team_id = $1`, teamID); err != nil {
		return fmt.Errorf("failed to clear team projects: %w", err)
	}
	if len(projectIDs) > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO team_projects (team_id, project_id)
			SELECT $1, UNNEST($2::uuid[])
			ON CONFLICT DO NOTHING
		`, teamID, pq.Array(projectIDs))
		if err != nil {
			return fmt.Errorf("failed to set team projects: %w", translateError(err))
		}
	}
	return tx.Commit()
}

// DeleteTeam deletes a team; memberships and invitations cascade.
func (r *TeamRepository) DeleteTeam(ctx context.Context, teamID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, teamID)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return requireOneRow(res, ErrNotFound)
}

// AddMember inserts a membership. It returns ErrAlreadyMember when the user
// already belongs to the team and ErrInvalidReference when team or user is missing.
func (r *TeamRepository) AddMember(ctx context.Context, teamID, userID, role string) (*models.TeamMember, error) {
	if role == "" {
		role = "member"
	}
	member := &models.TeamMember{}
	err := r.db.GetContext(ctx, member, `
		INSERT INTO team_members (team_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id, user_id) DO NOTHING
		RETURNING team_id, user_id, role, joined_at
	`, teamID, userID, role, time.Now())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlreadyMember
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add team member: %w", translateError(err))
	}
	return member, nil
}

// RemoveMember deletes a membership. Removing a non-member is not an error;
// the returned bool reports whether a row was deleted.
func (r *TeamRepository) RemoveMember(ctx context.Context, teamID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove team member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// UpdateMemberRole changes a member's role, returning ErrMemberNotFound for non-members.
func (r *TeamRepository) UpdateMemberRole(ctx context.Context, teamID, userID, role string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE team_members SET role = $3 WHERE team_id = $1 AND user_id = $2`,
		teamID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", translateError(err))
	}
	return requireOneRow(res, ErrMemberNotFound)
}

// GetMember returns the membership row or nil.
func (r *TeamRepository) GetMember(ctx context.Context, teamID, userID string) (*models.TeamMember, error) {
	member := &models.TeamMember{}
	err := r.db.GetContext(ctx, member, `
		SELECT team_id, user_id, role, joined_at
		FROM team_members
		WHERE team_id = $1 AND user_id = $2
	`, teamID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team member: %w", err)
	}
	return member, nil
}

// IsMember reports whether userID belongs to the team.
func (r *TeamRepository) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2)`, teamID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}
	return exists, nil
}

// ListMembers returns the team's members joined with user details, oldest first.
func (r *TeamRepository) ListMembers(ctx context.Context, teamID string) ([]models.TeamMemberWithUser, error) {
	members := make([]models.TeamMemberWithUser, 0)
	err := r.db.SelectContext(ctx, &members, `
		SELECT tm.user_id, tm.role, tm.joined_at,
		       u.name AS user_name, u.email AS user_email, u.avatar_url
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1
		ORDER BY tm.joined_at, u.name
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	return members, nil
}
