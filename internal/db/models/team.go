// Package models - team.go defines Team, its memberships, and the populated
// view returned by the API.
package models

import "time"

// Team is an owned group of members and projects.
type Team struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	OwnerID     string    `db:"owner_id" json:"owner"`
	CreatedBy   string    `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// TeamMember is a single (team, user) membership row.
type TeamMember struct {
	TeamID   string    `db:"team_id" json:"teamId"`
	UserID   string    `db:"user_id" json:"userId"`
	Role     string    `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joinedAt"`
}

// TeamMemberWithUser joins a membership with the member's display fields.
type TeamMemberWithUser struct {
	UserID    string    `db:"user_id" json:"-"`
	Role      string    `db:"role" json:"role"`
	JoinedAt  time.Time `db:"joined_at" json:"joinedAt"`
	UserName  string    `db:"user_name" json:"-"`
	UserEmail string    `db:"user_email" json:"-"`
	AvatarURL *string   `db:"avatar_url" json:"-"`
}

// TeamMemberView is the JSON shape of a populated membership.
type TeamMemberView struct {
	User     MemberUser `json:"user"`
	Role     string     `json:"role"`
	JoinedAt time.Time  `json:"joinedAt"`
}

// MemberUser is the user reference inside a TeamMemberView.
type MemberUser struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Avatar *string `json:"avatar,omitempty"`
}

// View converts the joined row to its JSON shape.
func (m TeamMemberWithUser) View() TeamMemberView {
	return TeamMemberView{
		User:     MemberUser{ID: m.UserID, Name: m.UserName, Email: m.UserEmail, Avatar: m.AvatarURL},
		Role:     m.Role,
		JoinedAt: m.JoinedAt,
	}
}

// TeamDetail is a team populated with owner, members, and projects.
type TeamDetail struct {
	Team
	Owner    *UserSummary     `json:"ownerUser,omitempty"`
	Members  []TeamMemberView `json:"members"`
	Projects []ProjectSummary `json:"projects"`
}

// Member returns the membership for userID, or nil.
func (d *TeamDetail) Member(userID string) *TeamMemberView {
	for i := range d.Members {
		if d.Members[i].User.ID == userID {
			return &d.Members[i]
		}
	}
	return nil
}
