// members.go implements membership changes and the invitation endpoints.
package teams

import (
	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/response"
	"github.com/projecthub/projecthub/internal/middleware"
)

// @Summary      Add member
// @Description  Adds an existing user to the team by email. Unknown emails are rejected; use the invite endpoint for those.
// @Tags         Teams
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string              true  "Team ID"
// @Param        body  body  MemberEmailRequest  true  "Member"
// @Success      200  {object}  response.Envelope  "data: models.TeamDetail"
// @Failure      400  {object}  response.Envelope  "Already a member"
// @Failure      403  {object}  response.Envelope  "Not a team owner or admin"
// @Failure      404  {object}  response.Envelope  "Team or user not found"
// @Router       /api/teams/{id}/members [post]
func (h *Handlers) AddMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		var req MemberEmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
		team, err := h.teams.AddMemberByEmail(c.Request.Context(), middleware.CurrentUser(c), id, req.Email, req.Role)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.DataMessage(c, team, "Member added successfully")
	}
}

// @Summary      Invite member
// @Description  Adds the user directly when an account exists for the email; otherwise stores an invitation and emails a join link.
// @Tags         Teams
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string              true  "Team ID"
// @Param        body  body  MemberEmailRequest  true  "Invitee"
// @Success      200  {object}  response.Envelope  "Existing user added: data: {member, team}"
// @Success      201  {object}  response.Envelope  "Invitation created: data: models.Invitation"
// @Failure      400  {object}  response.Envelope  "Already a member"
// @Failure      403  {object}  response.Envelope  "Not a team owner or admin"
// @Router       /api/teams/{id}/invite [post]
func (h *Handlers) InviteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		var req MemberEmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
		res, err := h.teams.InviteOrAdd(c.Request.Context(), middleware.CurrentUser(c), id, req.Email, req.Role)
		if err != nil {
			response.Error(c, err)
			return
		}
		if res.Invitation != nil {
			response.Created(c, res.Invitation)
			return
		}
		response.DataMessage(c, gin.H{"member": res.Member, "team": res.Team}, "User added to team successfully")
	}
}

// @Summary      Remove member
// @Description  Removing a user who is not a member succeeds. The owner cannot be removed.
// @Tags         Teams
// @Security     Bearer
// @Produce      json
// @Param        id      path  string  true  "Team ID"
// @Param        userId  path  string  true  "User ID"
// @Success      200  {object}  response.Envelope  "data: models.TeamDetail"
// @Failure      400  {object}  response.Envelope  "Cannot remove the owner"
// @Failure      403  {object}  response.Envelope  "Not a team owner or admin"
// @Router       /api/teams/{id}/members/{userId} [delete]
func (h *Handlers) RemoveMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		userID, ok := response.IDParam(c, "userId")
		if !ok {
			return
		}
		team, err := h.teams.RemoveMember(c.Request.Context(), middleware.CurrentUser(c), id, userID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.DataMessage(c, team, "Member removed successfully")
	}
}

// @Summary      Change member role
// @Tags         Teams
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id      path  string       true  "Team ID"
// @Param        userId  path  string       true  "User ID"
// @Param        body    body  RoleRequest  true  "Role"
// @Success      200  {object}  response.Envelope  "data: models.TeamDetail"
// @Failure      400  {object}  response.Envelope  "Invalid role or owner demotion"
// @Failure      403  {object}  response.Envelope  "Not a team owner or admin"
// @Failure      404  {object}  response.Envelope  "Not a member"
// @Router       /api/teams/{id}/members/{userId} [patch]
func (h *Handlers) UpdateMemberRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		userID, ok := response.IDParam(c, "userId")
		if !ok {
			return
		}
		var req RoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
		team, err := h.teams.UpdateMemberRole(c.Request.Context(), middleware.CurrentUser(c), id, userID, req.Role)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.DataMessage(c, team, "Member role updated successfully")
	}
}

// @Summary      List pending invitations
// @Tags         Teams
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Team ID"
// @Success      200  {object}  response.Envelope  "data: []models.Invitation"
// @Failure      403  {object}  response.Envelope  "Not a team owner or admin"
// @Router       /api/teams/{id}/invitations [get]
func (h *Handlers) ListInvitationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		invs, err := h.teams.ListInvitations(c.Request.Context(), middleware.CurrentUser(c), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, invs)
	}
}

// @Summary      Revoke invitation
// @Tags         Teams
// @Security     Bearer
// @Produce      json
// @Param        id            path  string  true  "Team ID"
// @Param        invitationId  path  string  true  "Invitation ID"
// @Success      200  {object}  response.Envelope
// @Failure      403  {object}  response.Envelope  "Not a team owner or admin"
// @Failure      404  {object}  response.Envelope  "Invitation not found"
// @Router       /api/teams/{id}/invitations/{invitationId} [delete]
func (h *Handlers) RevokeInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		invID, ok := response.IDParam(c, "invitationId")
		if !ok {
			return
		}
		if err := h.teams.RevokeInvitation(c.Request.Context(), middleware.CurrentUser(c), id, invID); err != nil {
			response.Error(c, err)
			return
		}
		response.Message(c, "Invitation revoked")
	}
}

// @Summary      Preview invitation
// @Description  Public. Shows the team, inviter and invited email of a live invitation.
// @Tags         Invitations
// @Produce      json
// @Param        token  path  string  true  "Invitation token"
// @Success      200  {object}  response.Envelope  "data: models.InvitationPreview"
// @Failure      404  {object}  response.Envelope  "Invalid or expired invitation"
// @Router       /api/invitations/{token} [get]
func (h *Handlers) PreviewInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		preview, err := h.teams.PreviewInvitation(c.Request.Context(), c.Param("token"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, preview)
	}
}

// @Summary      Accept invitation
// @Description  Redeems the invitation for the caller, whose email must match the invitation.
// @Tags         Invitations
// @Security     Bearer
// @Produce      json
// @Param        token  path  string  true  "Invitation token"
// @Success      200  {object}  response.Envelope  "data: models.TeamDetail"
// @Failure      404  {object}  response.Envelope  "Invalid or expired invitation"
// @Router       /api/invitations/{token}/accept [post]
func (h *Handlers) AcceptInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		team, err := h.teams.RedeemInvitation(c.Request.Context(), c.Param("token"), middleware.CurrentUser(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.DataMessage(c, team, "Invitation accepted")
	}
}
