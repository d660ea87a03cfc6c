// Package auth - roles.go defines the role enumeration used both for a user's
// global role and for a member's role within a team.
package auth

import "fmt"

// Role is a global or team-scoped role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// AllRoles returns every valid role.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleMember, RoleViewer}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// ParseRole converts s to a Role. An empty string yields def.
func ParseRole(s string, def Role) (Role, error) {
	if s == "" {
		return def, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q: must be admin, member, or viewer", s)
	}
	return r, nil
}

// IsAdmin reports whether a global role string grants administrator rights.
func IsAdmin(role string) bool {
	return Role(role) == RoleAdmin
}
