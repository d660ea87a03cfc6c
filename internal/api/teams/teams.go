// Package teams implements the team, membership and invitation endpoints.
// Authorization decisions are made by services.TeamService; handlers only
// bind input and translate results.
package teams

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/response"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
	"github.com/projecthub/projecthub/internal/middleware"
	"github.com/projecthub/projecthub/internal/services"
)

// TeamManager is the team membership lifecycle. *services.TeamService implements it.
type TeamManager interface {
	CreateTeam(ctx context.Context, actor *models.User, in services.TeamInput) (*models.TeamDetail, error)
	GetTeam(ctx context.Context, actor *models.User, teamID string) (*models.TeamDetail, error)
	ListTeams(ctx context.Context, actor *models.User) ([]*models.Team, error)
	UpdateTeam(ctx context.Context, actor *models.User, teamID string, upd services.TeamUpdate) (*models.TeamDetail, error)
	DeleteTeam(ctx context.Context, actor *models.User, teamID string) error

	InviteOrAdd(ctx context.Context, actor *models.User, teamID, email, role string) (*services.InviteResult, error)
	AddMemberByEmail(ctx context.Context, actor *models.User, teamID, email, role string) (*models.TeamDetail, error)
	RemoveMember(ctx context.Context, actor *models.User, teamID, userID string) (*models.TeamDetail, error)
	UpdateMemberRole(ctx context.Context, actor *models.User, teamID, userID, role string) (*models.TeamDetail, error)

	ListInvitations(ctx context.Context, actor *models.User, teamID string) ([]*models.Invitation, error)
	RevokeInvitation(ctx context.Context, actor *models.User, teamID, invitationID string) error
	PreviewInvitation(ctx context.Context, token string) (*models.InvitationPreview, error)
	RedeemInvitation(ctx context.Context, token string, user *models.User) (*models.TeamDetail, error)
}

// Handlers serves the /api/teams and /api/invitations endpoints
type Handlers struct {
	teams TeamManager
}

// NewHandlers creates a new Handlers instance
func NewHandlers(teams TeamManager) *Handlers {
	return &Handlers{teams: teams}
}

// MemberRequest names an initial member of a new team
type MemberRequest struct {
	UserID string `json:"userId" binding:"required,uuid"`
	Role   string `json:"role" binding:"omitempty,oneof=admin member viewer"`
}

// CreateTeamRequest is the team creation payload
type CreateTeamRequest struct {
	Name        string          `json:"name" binding:"required,max=100"`
	Description *string         `json:"description" binding:"omitempty,max=500"`
	Members     []MemberRequest `json:"members" binding:"omitempty,dive"`
}

// UpdateTeamRequest is a partial team update. Projects, when present,
// replaces the team's project list.
type UpdateTeamRequest struct {
	Name        *string  `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string  `json:"description" binding:"omitempty,max=500"`
	Projects    []string `json:"projects" binding:"omitempty,dive,uuid"`
}

// MemberEmailRequest adds or invites a member by email
type MemberEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"omitempty,oneof=admin member viewer"`
}

// RoleRequest changes a member's role
type RoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin member viewer"`
}

// @Summary      List teams
// @Description  Teams the caller owns or belongs to.
// @Tags         Teams
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  response.Envelope  "data: []models.Team"
// @Router       /api/teams [get]
func (h *Handlers) ListTeamsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		teams, err := h.teams.ListTeams(c.Request.Context(), middleware.CurrentUser(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, teams)
	}
}

// @Summary      Get team
// @Tags         Teams
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Team ID"
// @Success      200  {object}  response.Envelope  "data: models.TeamDetail"
// @Failure      403  {object}  response.Envelope  "Not a member"
// @Failure      404  {object}  response.Envelope  "Team not found"
// @Router       /api/teams/{id} [get]
func (h *Handlers) GetTeamHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		team, err := h.teams.GetTeam(c.Request.Context(), middleware.CurrentUser(c), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, team)
	}
}

// @Summary      Create team
// @Description  The caller becomes the owner and an admin member.
// @Tags         Teams
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateTeamRequest  true  "Team"
// @Success      201  {object}  response.Envelope  "data: models.TeamDetail"
// @Failure      400  {object}  response.Envelope  "Validation failed"
// @Router       /api/teams [post]
func (h *Handlers) CreateTeamHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTeamRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
		members := make([]repositories.InitialMember, 0, len(req.Members))
		for _, m := range req.Members {
			members = append(members, repositories.InitialMember{UserID: m.UserID, Role: m.Role})
		}

		team, err := h.teams.CreateTeam(c.Request.Context(), middleware.CurrentUser(c), services.TeamInput{
			Name:        req.Name,
			Description: req.Description,
			Members:     members,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, team)
	}
}

// @Summary      Update team
// @Description  Partial update. Projects, when present, replaces the team's project list; the caller needs access to each project.
// @Tags         Teams
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string             true  "Team ID"
// @Param        body  body  UpdateTeamRequest  true  "Changes"
// @Success      200  {object}  response.Envelope  "data: models.TeamDetail"
// @Failure      400  {object}  response.Envelope  "Validation failed"
// @Failure      403  {object}  response.Envelope  "Not a team owner or admin, or project not accessible"
// @Router       /api/teams/{id} [put]
func (h *Handlers) UpdateTeamHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		var req UpdateTeamRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
		team, err := h.teams.UpdateTeam(c.Request.Context(), middleware.CurrentUser(c), id, services.TeamUpdate{
			Name:        req.Name,
			Description: req.Description,
			ProjectIDs:  req.Projects,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, team)
	}
}

// @Summary      Delete team
// @Tags         Teams
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Team ID"
// @Success      200  {object}  response.Envelope
// @Failure      403  {object}  response.Envelope  "Only the owner or an admin can delete a team"
// @Failure      404  {object}  response.Envelope  "Team not found"
// @Router       /api/teams/{id} [delete]
func (h *Handlers) DeleteTeamHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		if err := h.teams.DeleteTeam(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
			response.Error(c, err)
			return
		}
		response.Message(c, "Team deleted successfully")
	}
}
