// Package middleware provides Gin HTTP middleware for authentication, authorization,
// rate limiting, security headers, request logging, metrics and activity logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Recovery → RequestID → Metrics → Logger → CORS → Security → RateLimit → Auth → Activity → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth so brute-force attempts are blocked before any DB work.
package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/projecthub/projecthub/internal/api/response"
	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/db/models"
)

// Context keys set by AuthMiddleware.
const (
	UserKey   = "user"
	UserIDKey = "user_id"
)

// Authenticator resolves a bearer token to the user it was issued for.
// services.AccountService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// AuthMiddleware requires a valid bearer token and loads the user into the context.
func AuthMiddleware(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "Not authorized, no token")
			return
		}

		user, err := authn.Authenticate(c.Request.Context(), token)
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			response.Unauthorized(c, "Not authorized, token expired")
			return
		case errors.Is(err, auth.ErrInvalidToken):
			response.Unauthorized(c, "Not authorized, token failed")
			return
		case err != nil:
			response.Error(c, err)
			return
		}

		c.Set(UserKey, user)
		c.Set(UserIDKey, user.ID)
		c.Next()
	}
}

// OptionalAuthMiddleware loads the user when a valid bearer token is present
// and otherwise continues anonymously.
func OptionalAuthMiddleware(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if user, err := authn.Authenticate(c.Request.Context(), token); err == nil {
				c.Set(UserKey, user)
				c.Set(UserIDKey, user.ID)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}
