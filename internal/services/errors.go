// Package services implements the business logic that coordinates repositories,
// credentials and outbound notifications: team membership and invitations,
// account registration and password reset, and in-app notifications.
//
// Services return the sentinel errors below, repository sentinels, or a
// *ValidationError. The HTTP layer classifies them into status codes.
package services

import "errors"

var (
	// ErrForbidden is returned when the actor lacks the rights for an operation.
	ErrForbidden = errors.New("not authorized to perform this action")
	// ErrInvalidCredentials is returned by Login for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidResetToken is returned for unusable password-reset tokens.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")

	ErrTeamNotFound         = errors.New("team not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrOwnerRemoval and ErrOwnerDemotion keep the team owner a member with the admin role.
	ErrOwnerRemoval  = errors.New("team owner cannot be removed")
	ErrOwnerDemotion = errors.New("team owner role cannot be changed")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
