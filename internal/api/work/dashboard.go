// dashboard.go implements the per-user dashboard counters and the admin
// activity feed.
package work

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/response"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
	"github.com/projecthub/projecthub/internal/middleware"
)

// StatsSource is implemented by *repositories.TaskRepository.
type StatsSource interface {
	GetDashboardStats(ctx context.Context, userID string) (*models.DashboardStats, error)
}

// ActivitySource is implemented by *repositories.ActivityRepository.
type ActivitySource interface {
	ListActivityLogs(ctx context.Context, filters repositories.ActivityFilters, limit, offset int) ([]*models.ActivityLog, int, error)
}

// DashboardHandlers serves the dashboard and activity endpoints
type DashboardHandlers struct {
	stats    StatsSource
	activity ActivitySource
}

// NewDashboardHandlers creates a new DashboardHandlers instance
func NewDashboardHandlers(stats StatsSource, activity ActivitySource) *DashboardHandlers {
	return &DashboardHandlers{stats: stats, activity: activity}
}

// StatsHandler returns the caller's project and task counters
// GET /api/dashboard/stats
func (h *DashboardHandlers) StatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.stats.GetDashboardStats(c.Request.Context(), middleware.CurrentUser(c).ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, stats)
	}
}

// @Summary      List activity
// @Description  Recent write requests, newest first. Requires the admin role.
// @Tags         Activity
// @Security     Bearer
// @Produce      json
// @Param        page           query  int     false  "Page number (default 1)"
// @Param        per_page       query  int     false  "Items per page, max 100 (default 50)"
// @Param        user_id        query  string  false  "Filter by user"
// @Param        resource_type  query  string  false  "Filter by resource type"
// @Param        since          query  string  false  "RFC 3339 lower bound"
// @Success      200  {object}  response.Envelope  "data: {logs, pagination}"
// @Router       /api/activity [get]
func (h *DashboardHandlers) ActivityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 100 {
			perPage = 50
		}

		var filters repositories.ActivityFilters
		if v := c.Query("user_id"); v != "" {
			filters.UserID = &v
		}
		if v := c.Query("resource_type"); v != "" {
			filters.ResourceType = &v
		}
		if v := c.Query("since"); v != "" {
			since, err := time.Parse(time.RFC3339, v)
			if err != nil {
				response.BadRequest(c, "Validation failed", response.FieldError{Field: "since", Message: "must be an RFC 3339 timestamp"})
				return
			}
			filters.StartDate = &since
		}

		logs, total, err := h.activity.ListActivityLogs(c.Request.Context(), filters, perPage, (page-1)*perPage)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, gin.H{
			"logs": logs,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}
