// activity.go provides Gin middleware that records authenticated write
// requests to the activity log without delaying the response.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/projecthub/projecthub/internal/config"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/safego"
)

// ActivityRecorder persists activity log entries.
type ActivityRecorder interface {
	CreateActivityLog(ctx context.Context, log *models.ActivityLog) error
}

// activityWriteTimeout bounds the background insert.
const activityWriteTimeout = 5 * time.Second

// resourceTypes maps the first path segment after /api to a resource type.
var resourceTypes = map[string]string{
	"auth":          "user",
	"users":         "user",
	"teams":         "team",
	"invitations":   "team",
	"projects":      "project",
	"tasks":         "task",
	"notifications": "notification",
}

// ActivityMiddleware records every authenticated POST, PUT, PATCH and DELETE.
// Failed requests are recorded only when cfg.LogFailedRequests is set.
func ActivityMiddleware(recorder ActivityRecorder, cfg config.ActivityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if !cfg.Enabled || !isWrite(c.Request.Method) {
			return
		}
		status := c.Writer.Status()
		if status >= http.StatusBadRequest && !cfg.LogFailedRequests {
			return
		}
		userID := c.GetString(UserIDKey)
		if userID == "" {
			return
		}

		entry := buildActivity(c, userID, status)
		safego.Go("activity-log", func() {
			ctx, cancel := context.WithTimeout(context.Background(), activityWriteTimeout)
			defer cancel()
			if err := recorder.CreateActivityLog(ctx, entry); err != nil {
				slog.Warn("failed to record activity", "action", entry.Action, "error", err)
			}
		})
	}
}

func buildActivity(c *gin.Context, userID string, status int) *models.ActivityLog {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	ip := c.ClientIP()
	entry := &models.ActivityLog{
		UserID:     &userID,
		Action:     c.Request.Method + " " + route,
		IPAddress:  &ip,
		StatusCode: status,
		Metadata:   map[string]interface{}{"request_id": c.GetString(RequestIDKey)},
		CreatedAt:  time.Now(),
	}
	if rt := resourceType(route); rt != "" {
		entry.ResourceType = &rt
	}
	if id := c.Param("id"); id != "" {
		entry.ResourceID = &id
	}
	if member := c.Param("userId"); member != "" {
		entry.Metadata["member_id"] = member
	}
	return entry
}

func resourceType(route string) string {
	rest := strings.TrimPrefix(route, "/api/")
	if rest == route {
		return ""
	}
	segment, _, _ := strings.Cut(rest, "/")
	return resourceTypes[segment]
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
