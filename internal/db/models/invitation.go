// Package models - invitation.go defines the pending team invitation.
package models

import "time"

// Invitation offers team membership to an email without an account. It is
// single use and only redeemable while ExpiresAt is in the future.
type Invitation struct {
	ID        string    `db:"id" json:"id"`
	TeamID    string    `db:"team_id" json:"team"`
	Email     string    `db:"email" json:"email"`
	Role      string    `db:"role" json:"role"`
	Token     string    `db:"token" json:"-"`
	InvitedBy *string   `db:"invited_by" json:"invitedBy,omitempty"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// IsExpired reports whether the invitation can no longer be redeemed at now.
func (i *Invitation) IsExpired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}

// InvitationPreview is the public view of an invitation shown on the join page.
type InvitationPreview struct {
	Email       string    `db:"email" json:"email"`
	Role        string    `db:"role" json:"role"`
	TeamID      string    `db:"team_id" json:"teamId"`
	TeamName    string    `db:"team_name" json:"teamName"`
	InviterName *string   `db:"inviter_name" json:"invitedBy,omitempty"`
	ExpiresAt   time.Time `db:"expires_at" json:"expiresAt"`
}
