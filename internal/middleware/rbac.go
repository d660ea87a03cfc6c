// rbac.go implements role checks on the authenticated user. Team-scoped
// rights are decided by the services package, not here.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/projecthub/projecthub/internal/api/response"
)

// RequireAdmin allows only users holding the global admin role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Unauthorized(c, "Not authorized, no token")
			return
		}
		if !user.IsAdmin() {
			response.Forbidden(c, "Admin access required")
			return
		}
		c.Next()
	}
}

// RequireSelfOrAdmin allows the user named by the path parameter param, or any admin.
func RequireSelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Unauthorized(c, "Not authorized, no token")
			return
		}
		if user.ID != c.Param(param) && !user.IsAdmin() {
			response.Forbidden(c, "Not authorized to modify this user")
			return
		}
		c.Next()
	}
}
