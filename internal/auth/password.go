// Package auth provides the credential primitives: bcrypt password hashing,
// bearer token issuance and verification, team invitation tokens, and the
// role enumeration shared by users and team memberships.
package auth

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the default work factor for password hashes.
const BcryptCost = 10

// MinPasswordLength is the shortest accepted plaintext password.
const MinPasswordLength = 6

// ErrWeakPassword is returned by ValidatePassword.
var ErrWeakPassword = errors.New("password must be at least 6 characters long and contain at least one number")

// HashPassword hashes a plaintext password with the default cost.
func HashPassword(plaintext string) (string, error) {
	return HashPasswordWithCost(plaintext, BcryptCost)
}

// HashPasswordWithCost hashes a plaintext password with an explicit bcrypt cost.
func HashPasswordWithCost(plaintext string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches the stored bcrypt hash.
func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// ValidatePassword enforces the minimum password policy.
func ValidatePassword(plaintext string) error {
	if len(plaintext) < MinPasswordLength {
		return ErrWeakPassword
	}
	for _, r := range plaintext {
		if unicode.IsDigit(r) {
			return nil
		}
	}
	return ErrWeakPassword
}
