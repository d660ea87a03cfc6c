// Package auth - jwt.go handles bearer token creation, signing, and verification
// using a shared HMAC secret, including the development-mode secret fallback.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, has a bad signature,
	// uses an unexpected algorithm, or carries the wrong purpose.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a token's exp claim has passed.
	ErrExpiredToken = errors.New("token has expired")
)

const (
	purposeAccess        = "access"
	purposePasswordReset = "password_reset"

	// DefaultTokenExpiry is used when the issuer is built with a zero expiry.
	DefaultTokenExpiry = 24 * time.Hour
	// DefaultResetTokenExpiry is the lifetime of a password-reset token.
	DefaultResetTokenExpiry = time.Hour
)

// Claims represents the JWT claims structure
type Claims struct {
	UserID  string `json:"user_id"`
	Purpose string `json:"purpose"`
	// PasswordFingerprint ties a reset token to the password hash it was issued
	// against, so the token stops working once the password changes.
	PasswordFingerprint string `json:"pwf,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens for a single secret.
type TokenIssuer struct {
	secret      []byte
	issuer      string
	expiry      time.Duration
	resetExpiry time.Duration
	now         func() time.Time
}

// TokenOptions configures a TokenIssuer.
type TokenOptions struct {
	Secret      string
	Issuer      string
	Expiry      time.Duration
	ResetExpiry time.Duration
	// AllowGeneratedSecret permits an empty Secret by generating a random one.
	// Tokens then do not survive a restart; only enable outside production.
	AllowGeneratedSecret bool
}

// NewTokenIssuer creates a TokenIssuer. An empty secret is an error unless
// AllowGeneratedSecret is set.
func NewTokenIssuer(opts TokenOptions) (*TokenIssuer, error) {
	secret := opts.Secret
	if secret == "" {
		if !opts.AllowGeneratedSecret {
			return nil, errors.New("SECURITY ERROR: PH_AUTH_JWT_SECRET is required in production. " +
				"Generate a secure secret with: openssl rand -hex 32")
		}
		generated, err := generateRandomSecret()
		if err != nil {
			return nil, err
		}
		secret = generated
		slog.Warn("PH_AUTH_JWT_SECRET not set, using auto-generated secret for development; sessions will not persist across restarts")
	}
	if opts.Expiry <= 0 {
		opts.Expiry = DefaultTokenExpiry
	}
	if opts.ResetExpiry <= 0 {
		opts.ResetExpiry = DefaultResetTokenExpiry
	}
	if opts.Issuer == "" {
		opts.Issuer = "projecthub"
	}
	return &TokenIssuer{
		secret:      []byte(secret),
		issuer:      opts.Issuer,
		expiry:      opts.Expiry,
		resetExpiry: opts.ResetExpiry,
		now:         time.Now,
	}, nil
}

// Expiry returns the access token lifetime.
func (t *TokenIssuer) Expiry() time.Duration { return t.expiry }

func generateRandomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Issue creates an access token for the given user id.
func (t *TokenIssuer) Issue(userID string) (string, error) {
	return t.sign(&Claims{UserID: userID, Purpose: purposeAccess}, t.expiry)
}

// Verify parses an access token and returns the user id it was issued for.
func (t *TokenIssuer) Verify(tokenString string) (string, error) {
	claims, err := t.parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Purpose != purposeAccess {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

// IssuePasswordReset creates a short-lived token that authorizes a single
// password change for userID while its password hash is unchanged.
func (t *TokenIssuer) IssuePasswordReset(userID, passwordHash string) (string, error) {
	return t.sign(&Claims{
		UserID:              userID,
		Purpose:             purposePasswordReset,
		PasswordFingerprint: Fingerprint(passwordHash),
	}, t.resetExpiry)
}

// VerifyPasswordReset parses a reset token and returns the user id and the
// password fingerprint it was bound to.
func (t *TokenIssuer) VerifyPasswordReset(tokenString string) (userID, fingerprint string, err error) {
	claims, err := t.parse(tokenString)
	if err != nil {
		return "", "", err
	}
	if claims.Purpose != purposePasswordReset {
		return "", "", ErrInvalidToken
	}
	return claims.UserID, claims.PasswordFingerprint, nil
}

// Fingerprint returns a short digest of a password hash for embedding in reset tokens.
func Fingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

func (t *TokenIssuer) sign(claims *Claims, ttl time.Duration) (string, error) {
	now := t.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    t.issuer,
		Subject:   claims.UserID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (t *TokenIssuer) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithIssuer(t.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
