package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
	"github.com/projecthub/projecthub/internal/telemetry"
)

// DefaultInvitationTTL is how long an invitation link stays redeemable.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// TeamService owns the team membership lifecycle: direct adds, email
// invitations and their redemption, role changes and removals.
type TeamService struct {
	teams         TeamStore
	users         UserStore
	invitations   InvitationStore
	notifications NotificationStore
	projects      ProjectStore
	mailer        TeamMailer

	invitationTTL time.Duration
	now           func() time.Time
}

// NewTeamService creates a TeamService. A non-positive ttl selects DefaultInvitationTTL.
func NewTeamService(teams TeamStore, users UserStore, invitations InvitationStore,
	notifications NotificationStore, projects ProjectStore, mailer TeamMailer, ttl time.Duration) *TeamService {
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	return &TeamService{
		teams:         teams,
		users:         users,
		invitations:   invitations,
		notifications: notifications,
		projects:      projects,
		mailer:        mailer,
		invitationTTL: ttl,
		now:           time.Now,
	}
}

// TeamInput carries the writable team fields.
type TeamInput struct {
	Name        string
	Description *string
	Members     []repositories.InitialMember
}

// TeamUpdate carries a partial team update. Nil fields are left unchanged.
type TeamUpdate struct {
	Name        *string
	Description *string
	ProjectIDs  []string
}

// InviteResult is the outcome of InviteOrAdd. Exactly one of Invitation and
// Member is set.
type InviteResult struct {
	Invitation *models.Invitation
	Member     *models.User
	Team       *models.TeamDetail
}

// CreateTeam creates a team owned by actor, who also becomes an admin member.
func (s *TeamService) CreateTeam(ctx context.Context, actor *models.User, in TeamInput) (*models.TeamDetail, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "team name is required")
	}
	members := make([]repositories.InitialMember, 0, len(in.Members))
	for _, m := range in.Members {
		role, err := auth.ParseRole(m.Role, auth.RoleMember)
		if err != nil {
			return nil, invalid("members", err.Error())
		}
		members = append(members, repositories.InitialMember{UserID: m.UserID, Role: string(role)})
	}

	team := &models.Team{Name: name, Description: in.Description, OwnerID: actor.ID}
	if err := s.teams.CreateTeam(ctx, team, members); err != nil {
		return nil, err
	}
	slog.Info("team created", "team_id", team.ID, "owner_id", actor.ID, "initial_members", len(members))
	return s.detail(ctx, team.ID)
}

// GetTeam returns the populated team if actor may view it.
func (s *TeamService) GetTeam(ctx context.Context, actor *models.User, teamID string) (*models.TeamDetail, error) {
	team, membership, err := s.loadWithMembership(ctx, actor, teamID)
	if err != nil {
		return nil, err
	}
	if !CanViewTeam(actor, team, membership) {
		return nil, ErrForbidden
	}
	return s.detail(ctx, teamID)
}

// ListTeams returns the teams actor owns or belongs to.
func (s *TeamService) ListTeams(ctx context.Context, actor *models.User) ([]*models.Team, error) {
	return s.teams.ListTeamsForUser(ctx, actor.ID)
}

// UpdateTeam applies a partial update. Requires the manage guard.
func (s *TeamService) UpdateTeam(ctx context.Context, actor *models.User, teamID string, upd TeamUpdate) (*models.TeamDetail, error) {
	team, err := s.authorizeManage(ctx, actor, teamID)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, invalid("name", "team name cannot be empty")
		}
		team.Name = name
	}
	if upd.Description != nil {
		team.Description = upd.Description
	}
	var projectIDs []string
	if upd.ProjectIDs != nil {
		projectIDs = dedupe(upd.ProjectIDs)
		if err := s.authorizeProjects(ctx, actor, projectIDs); err != nil {
			return nil, err
		}
	}
	if err := s.teams.UpdateTeam(ctx, team); err != nil {
		return nil, err
	}
	if upd.ProjectIDs != nil {
		if err := s.teams.SetTeamProjects(ctx, teamID, projectIDs); err != nil {
			return nil, err
		}
	}
	return s.detail(ctx, teamID)
}

// authorizeProjects requires actor to have access to every project linked to a team.
func (s *TeamService) authorizeProjects(ctx context.Context, actor *models.User, projectIDs []string) error {
	for _, id := range projectIDs {
		project, err := s.projects.GetProjectByID(ctx, id)
		if err != nil {
			return err
		}
		if project == nil {
			return ErrProjectNotFound
		}
		ok, err := canAccessProject(ctx, s.projects, actor, project)
		if err != nil {
			return err
		}
		if !ok {
			return ErrForbidden
		}
	}
	return nil
}

// DeleteTeam removes the team. Only the owner or a global admin may do so.
func (s *TeamService) DeleteTeam(ctx context.Context, actor *models.User, teamID string) error {
	team, err := s.load(ctx, teamID)
	if err != nil {
		return err
	}
	if !CanDeleteTeam(actor, team) {
		return ErrForbidden
	}
	if err := s.teams.DeleteTeam(ctx, teamID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrTeamNotFound
		}
		return err
	}
	slog.Info("team deleted", "team_id", teamID, "actor_id", actor.ID)
	return nil
}

// InviteOrAdd adds an existing user to the team directly, or creates an
// invitation when no account exists for email. The invitation is stored
// before the email is queued, so a delivery failure never loses it.
func (s *TeamService) InviteOrAdd(ctx context.Context, actor *models.User, teamID, email, role string) (*InviteResult, error) {
	team, err := s.authorizeManage(ctx, actor, teamID)
	if err != nil {
		return nil, err
	}
	r, err := parseMemberRole(role)
	if err != nil {
		return nil, err
	}
	email = repositories.NormalizeEmail(email)
	if email == "" {
		return nil, invalid("email", "email is required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if err := s.addExisting(ctx, actor, team, user, r); err != nil {
			return nil, err
		}
		detail, err := s.detail(ctx, teamID)
		if err != nil {
			return nil, err
		}
		return &InviteResult{Member: user, Team: detail}, nil
	}

	token, err := auth.NewInvitationToken()
	if err != nil {
		return nil, err
	}
	inv := &models.Invitation{
		TeamID:    teamID,
		Email:     email,
		Role:      string(r),
		Token:     token,
		InvitedBy: &actor.ID,
		ExpiresAt: s.now().Add(s.invitationTTL),
	}
	if err := s.invitations.UpsertInvitation(ctx, inv); err != nil {
		return nil, err
	}
	telemetry.InvitationsCreatedTotal.Inc()
	slog.Info("team invitation created", "team_id", teamID, "invitation_id", inv.ID, "invited_by", actor.ID)

	s.mailer.TeamInvitation(email, team.Name, actor.Name, token)
	return &InviteResult{Invitation: inv}, nil
}

// AddMemberByEmail adds the user registered under email to the team.
func (s *TeamService) AddMemberByEmail(ctx context.Context, actor *models.User, teamID, email, role string) (*models.TeamDetail, error) {
	team, err := s.authorizeManage(ctx, actor, teamID)
	if err != nil {
		return nil, err
	}
	r, err := parseMemberRole(role)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if err := s.addExisting(ctx, actor, team, user, r); err != nil {
		return nil, err
	}
	return s.detail(ctx, teamID)
}

func (s *TeamService) addExisting(ctx context.Context, actor *models.User, team *models.Team, user *models.User, role auth.Role) error {
	if _, err := s.teams.AddMember(ctx, team.ID, user.ID, string(role)); err != nil {
		return err
	}
	telemetry.TeamMembershipChangesTotal.WithLabelValues("add").Inc()
	slog.Info("team member added", "team_id", team.ID, "user_id", user.ID, "role", role, "actor_id", actor.ID)

	teamID := team.ID
	n := &models.Notification{
		UserID:        user.ID,
		Type:          models.NotificationTeamInvite,
		Title:         "Added to team",
		Message:       fmt.Sprintf("%s added you to the team %q", actor.Name, team.Name),
		RelatedTeamID: &teamID,
	}
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		slog.Warn("failed to record team notification", "team_id", team.ID, "user_id", user.ID, "error", err)
	}

	s.mailer.TeamAdded(user.Email, user.Name, team.ID, team.Name, actor.Name, string(role))
	return nil
}

// RemoveMember removes userID from the team. Removing a non-member succeeds.
// The owner cannot be removed.
func (s *TeamService) RemoveMember(ctx context.Context, actor *models.User, teamID, userID string) (*models.TeamDetail, error) {
	team, err := s.authorizeManage(ctx, actor, teamID)
	if err != nil {
		return nil, err
	}
	if userID == team.OwnerID {
		return nil, ErrOwnerRemoval
	}
	removed, err := s.teams.RemoveMember(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if removed {
		telemetry.TeamMembershipChangesTotal.WithLabelValues("remove").Inc()
		slog.Info("team member removed", "team_id", teamID, "user_id", userID, "actor_id", actor.ID)
	}
	return s.detail(ctx, teamID)
}

// UpdateMemberRole changes a member's role. The owner's role is fixed.
func (s *TeamService) UpdateMemberRole(ctx context.Context, actor *models.User, teamID, userID, role string) (*models.TeamDetail, error) {
	team, err := s.authorizeManage(ctx, actor, teamID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return nil, invalid("role", "role is required")
	}
	r, err := parseMemberRole(role)
	if err != nil {
		return nil, err
	}
	if userID == team.OwnerID {
		return nil, ErrOwnerDemotion
	}
	if err := s.teams.UpdateMemberRole(ctx, teamID, userID, string(r)); err != nil {
		return nil, err
	}
	telemetry.TeamMembershipChangesTotal.WithLabelValues("role").Inc()
	slog.Info("team member role changed", "team_id", teamID, "user_id", userID, "role", r, "actor_id", actor.ID)
	return s.detail(ctx, teamID)
}

// ListInvitations returns the team's pending invitations.
func (s *TeamService) ListInvitations(ctx context.Context, actor *models.User, teamID string) ([]*models.Invitation, error) {
	if _, err := s.authorizeManage(ctx, actor, teamID); err != nil {
		return nil, err
	}
	return s.invitations.ListPendingInvitations(ctx, teamID, s.now())
}

// RevokeInvitation deletes a pending invitation so its link stops working.
func (s *TeamService) RevokeInvitation(ctx context.Context, actor *models.User, teamID, invitationID string) error {
	if _, err := s.authorizeManage(ctx, actor, teamID); err != nil {
		return err
	}
	if err := s.invitations.DeleteInvitation(ctx, teamID, invitationID); err != nil {
		return err
	}
	slog.Info("team invitation revoked", "team_id", teamID, "invitation_id", invitationID, "actor_id", actor.ID)
	return nil
}

// RedeemInvitation makes user a member of the invitation's team. The token
// must be live and addressed to user's email.
func (s *TeamService) RedeemInvitation(ctx context.Context, token string, user *models.User) (*models.TeamDetail, error) {
	if !auth.IsWellFormedInvitationToken(token) {
		return nil, repositories.ErrInvitationNotFound
	}
	inv, err := s.invitations.RedeemInvitation(ctx, token, user.Email, user.ID, s.now())
	if err != nil {
		return nil, err
	}
	telemetry.InvitationsRedeemedTotal.Inc()
	slog.Info("team invitation redeemed", "team_id", inv.TeamID, "user_id", user.ID, "role", inv.Role)
	return s.detail(ctx, inv.TeamID)
}

// PreviewInvitation returns the public view of a live invitation.
func (s *TeamService) PreviewInvitation(ctx context.Context, token string) (*models.InvitationPreview, error) {
	if !auth.IsWellFormedInvitationToken(token) {
		return nil, repositories.ErrInvitationNotFound
	}
	p, err := s.invitations.GetInvitationPreview(ctx, token, s.now())
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, repositories.ErrInvitationNotFound
	}
	return p, nil
}

func (s *TeamService) load(ctx context.Context, teamID string) (*models.Team, error) {
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrTeamNotFound
	}
	return team, nil
}

func (s *TeamService) loadWithMembership(ctx context.Context, actor *models.User, teamID string) (*models.Team, *models.TeamMember, error) {
	team, err := s.load(ctx, teamID)
	if err != nil {
		return nil, nil, err
	}
	if team.OwnerID == actor.ID || actor.IsAdmin() {
		return team, nil, nil
	}
	membership, err := s.teams.GetMember(ctx, teamID, actor.ID)
	if err != nil {
		return nil, nil, err
	}
	return team, membership, nil
}

func (s *TeamService) authorizeManage(ctx context.Context, actor *models.User, teamID string) (*models.Team, error) {
	team, membership, err := s.loadWithMembership(ctx, actor, teamID)
	if err != nil {
		return nil, err
	}
	if !CanManageTeam(actor, team, membership) {
		return nil, ErrForbidden
	}
	return team, nil
}

func (s *TeamService) detail(ctx context.Context, teamID string) (*models.TeamDetail, error) {
	d, err := s.teams.GetTeamDetail(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrTeamNotFound
	}
	return d, nil
}

func parseMemberRole(s string) (auth.Role, error) {
	r, err := auth.ParseRole(s, auth.RoleMember)
	if err != nil {
		return "", invalid("role", err.Error())
	}
	return r, nil
}
