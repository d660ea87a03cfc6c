// invitation_repository.go implements InvitationRepository, the store for
// pending team invitations. At most one invitation exists per (team, email);
// redemption deletes the row and inserts the membership in one transaction.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/projecthub/projecthub/internal/db/models"
)

const invitationColumns = `id, team_id, email, role, token, invited_by, expires_at, created_at`

// InvitationRepository handles team invitation database operations
type InvitationRepository struct {
	db *sqlx.DB
}

// NewInvitationRepository creates a new InvitationRepository
func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// UpsertInvitation stores a pending invitation. If one already exists for the
// same team and email, its token, role, inviter and expiry are replaced so the
// previous link stops working. inv.ID and inv.CreatedAt are set from the stored row.
func (r *InvitationRepository) UpsertInvitation(ctx context.Context, inv *models.Invitation) error {
	inv.Email = NormalizeEmail(inv.Email)
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}

	var row struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := r.db.GetContext(ctx, &row, `
		INSERT INTO team_invitations (id, team_id, email, role, token, invited_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (team_id, LOWER(email)) DO UPDATE
		SET role = EXCLUDED.role,
		    token = EXCLUDED.token,
		    invited_by = EXCLUDED.invited_by,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at
		RETURNING id, created_at
	`, uuid.New().String(), inv.TeamID, inv.Email, inv.Role, inv.Token, inv.InvitedBy, inv.ExpiresAt, inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store invitation: %w", translateError(err))
	}
	inv.ID = row.ID
	inv.CreatedAt = row.CreatedAt
	return nil
}

// GetInvitationByToken returns the invitation for a token, expired or not, or nil.
func (r *InvitationRepository) GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	inv := &models.Invitation{}
	err := r.db.GetContext(ctx, inv, `SELECT `+invitationColumns+` FROM team_invitations WHERE token = $1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// GetInvitationPreview returns the public view of a live invitation, or nil
// when the token is unknown or expired at now.
func (r *InvitationRepository) GetInvitationPreview(ctx context.Context, token string, now time.Time) (*models.InvitationPreview, error) {
	p := &models.InvitationPreview{}
	err := r.db.GetContext(ctx, p, `
		SELECT i.email, i.role, i.team_id, t.name AS team_name, u.name AS inviter_name, i.expires_at
		FROM team_invitations i
		JOIN teams t ON t.id = i.team_id
		LEFT JOIN users u ON u.id = i.invited_by
		WHERE i.token = $1 AND i.expires_at > $2
	`, token, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation preview: %w", err)
	}
	return p, nil
}

// ListPendingInvitations returns the team's unexpired invitations, newest first.
func (r *InvitationRepository) ListPendingInvitations(ctx context.Context, teamID string, now time.Time) ([]*models.Invitation, error) {
	invs := make([]*models.Invitation, 0)
	err := r.db.SelectContext(ctx, &invs, `
		SELECT `+invitationColumns+`
		FROM team_invitations
		WHERE team_id = $1 AND expires_at > $2
		ORDER BY created_at DESC
	`, teamID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invs, nil
}

// RedeemInvitation consumes a live invitation addressed to email and makes
// userID a member of its team with the invitation's role. Expiry is checked
// against now here rather than relying on the purge job. An existing
// membership is left untouched. Returns ErrInvitationNotFound when the token
// is unknown, expired, or addressed to a different email.
func (r *InvitationRepository) RedeemInvitation(ctx context.Context, token, email, userID string, now time.Time) (*models.Invitation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	inv := &models.Invitation{}
	err = tx.GetContext(ctx, inv, `
		DELETE FROM team_invitations
		WHERE token = $1 AND expires_at > $2 AND LOWER(email) = $3
		RETURNING `+invitationColumns, token, now, NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume invitation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO team_members (team_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id, user_id) DO NOTHING
	`, inv.TeamID, userID, inv.Role, now)
	if err != nil {
		return nil, fmt.Errorf("failed to add invited member: %w", translateError(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit invitation redemption: %w", err)
	}
	return inv, nil
}

// DeleteInvitation revokes a pending invitation of a team.
func (r *InvitationRepository) DeleteInvitation(ctx context.Context, teamID, invitationID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM team_invitations WHERE id = $1 AND team_id = $2`, invitationID, teamID)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	return requireOneRow(res, ErrInvitationNotFound)
}

// PurgeExpired deletes every invitation whose expiry is at or before now.
func (r *InvitationRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM team_invitations WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired invitations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}
