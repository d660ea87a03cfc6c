package services

import (
	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/db/models"
)

// CanManageTeam reports whether actor may update the team or change its
// membership: the owner, a global admin, or a member holding the team admin role.
// membership is the actor's own membership row and may be nil.
func CanManageTeam(actor *models.User, team *models.Team, membership *models.TeamMember) bool {
	if actor == nil || team == nil {
		return false
	}
	if team.OwnerID == actor.ID || actor.IsAdmin() {
		return true
	}
	return membership != nil &&
		membership.TeamID == team.ID &&
		membership.UserID == actor.ID &&
		auth.Role(membership.Role) == auth.RoleAdmin
}

// CanDeleteTeam reports whether actor may delete the team: owner or global admin.
func CanDeleteTeam(actor *models.User, team *models.Team) bool {
	if actor == nil || team == nil {
		return false
	}
	return team.OwnerID == actor.ID || actor.IsAdmin()
}

// CanViewTeam reports whether actor may read the team.
func CanViewTeam(actor *models.User, team *models.Team, membership *models.TeamMember) bool {
	if actor == nil || team == nil {
		return false
	}
	if CanDeleteTeam(actor, team) {
		return true
	}
	return membership != nil && membership.TeamID == team.ID && membership.UserID == actor.ID
}

// CanModifyProject reports whether actor may update or delete the project.
func CanModifyProject(actor *models.User, project *models.Project) bool {
	if actor == nil || project == nil {
		return false
	}
	return project.OwnerID == actor.ID || actor.IsAdmin()
}
