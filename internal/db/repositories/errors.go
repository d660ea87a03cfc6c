// errors.go defines the sentinel errors returned by repositories and the
// mapping from PostgreSQL error codes onto them.
package repositories

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a mutation targets a row that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyMember is returned when adding a user who already belongs to the team.
	ErrAlreadyMember = errors.New("user is already a member of this team")
	// ErrMemberNotFound is returned when a membership operation targets a non-member.
	ErrMemberNotFound = errors.New("member not found in team")
	// ErrInvitationNotFound is returned for unknown, expired, or mismatched invitation tokens.
	ErrInvitationNotFound = errors.New("invitation not found or expired")
	// ErrEmailTaken is returned when an email is already registered.
	ErrEmailTaken = errors.New("email is already registered")
	// ErrDuplicate is returned for any other unique-constraint violation.
	ErrDuplicate = errors.New("duplicate value")
	// ErrInvalidReference is returned when a foreign key points at a missing row.
	ErrInvalidReference = errors.New("referenced record does not exist")
	// ErrInvalidInput is returned for values the database rejects as malformed.
	ErrInvalidInput = errors.New("invalid input")
)

// PostgreSQL SQLSTATE codes translated by translateError.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgInvalidTextRepr     = "22P02"
)

// translateError maps a *pq.Error onto the package's sentinel errors, carrying
// the constraint name or message as text. Other errors are returned unchanged.
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrInvalidReference, pqErr.Constraint)
	case pgNotNullViolation, pgCheckViolation, pgInvalidTextRepr:
		return fmt.Errorf("%w: %s", ErrInvalidInput, pqErr.Message)
	}
	return err
}

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation
}
