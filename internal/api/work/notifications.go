package work

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/response"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/middleware"
)

// Inbox is implemented by *services.NotificationService.
type Inbox interface {
	List(ctx context.Context, actor *models.User, unreadOnly bool) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, actor *models.User) (int, error)
	MarkRead(ctx context.Context, actor *models.User, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, actor *models.User) (int64, error)
	Delete(ctx context.Context, actor *models.User, id string) error
}

// NotificationHandlers serves /api/notifications. Every operation is scoped
// to the caller's own notifications.
type NotificationHandlers struct {
	inbox Inbox
}

// NewNotificationHandlers creates a new NotificationHandlers instance
func NewNotificationHandlers(inbox Inbox) *NotificationHandlers {
	return &NotificationHandlers{inbox: inbox}
}

// ListHandler returns the newest notifications
// GET /api/notifications?unreadOnly=true
func (h *NotificationHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		unreadOnly := c.Query("unreadOnly") == "true"
		items, err := h.inbox.List(c.Request.Context(), middleware.CurrentUser(c), unreadOnly)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, items)
	}
}

// UnreadCountHandler returns {count}
// GET /api/notifications/unread-count
func (h *NotificationHandlers) UnreadCountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := h.inbox.UnreadCount(c.Request.Context(), middleware.CurrentUser(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, gin.H{"count": n})
	}
}

// MarkReadHandler marks one notification read
// PATCH /api/notifications/:id/read
func (h *NotificationHandlers) MarkReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		n, err := h.inbox.MarkRead(c.Request.Context(), middleware.CurrentUser(c), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, n)
	}
}

// MarkAllReadHandler marks every notification read
// PATCH /api/notifications/read-all
func (h *NotificationHandlers) MarkAllReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := h.inbox.MarkAllRead(c.Request.Context(), middleware.CurrentUser(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.DataMessage(c, gin.H{"updated": n}, "All notifications marked as read")
	}
}

// DeleteHandler deletes one notification
// DELETE /api/notifications/:id
func (h *NotificationHandlers) DeleteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		if err := h.inbox.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
			response.Error(c, err)
			return
		}
		response.Message(c, "Notification deleted")
	}
}
