package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	// InvitationTokenBytes is the amount of randomness in an invitation token.
	InvitationTokenBytes = 20
	// InvitationTokenLength is the length of the hex-encoded token.
	InvitationTokenLength = InvitationTokenBytes * 2
)

// NewInvitationToken returns 20 random bytes, hex encoded.
func NewInvitationToken() (string, error) {
	b := make([]byte, InvitationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// IsWellFormedInvitationToken reports whether s could have been produced by
// NewInvitationToken. It lets handlers reject garbage before a database lookup.
func IsWellFormedInvitationToken(s string) bool {
	if len(s) != InvitationTokenLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
