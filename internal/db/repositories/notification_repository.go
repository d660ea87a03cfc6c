// notification_repository.go implements NotificationRepository for in-app
// notifications: create, list, mark read, delete and unread counts.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/projecthub/projecthub/internal/db/models"
)

// NotificationListLimit caps how many notifications a single list returns.
const NotificationListLimit = 50

const notificationColumns = `id, user_id, type, title, message, read,
	related_project_id, related_task_id, related_team_id, created_at`

// NotificationRepository handles notification database operations
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateNotification inserts a notification for n.UserID.
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	n.ID = uuid.New().String()
	n.CreatedAt = time.Now()
	if n.Type == "" {
		n.Type = models.NotificationGeneral
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, read,
			related_project_id, related_task_id, related_team_id, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, $8, $9)
	`, n.ID, n.UserID, n.Type, n.Title, n.Message,
		n.RelatedProjectID, n.RelatedTaskID, n.RelatedTeamID, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", translateError(err))
	}
	return nil
}

// ListForUser returns the user's newest notifications, optionally unread only.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND NOT read`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	out := make([]*models.Notification, 0)
	if err := r.db.SelectContext(ctx, &out, query, userID, NotificationListLimit); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// UnreadCount returns how many unread notifications the user has.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}

// MarkRead marks one of the user's notifications read. A notification owned by
// someone else is reported as ErrNotFound.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) (*models.Notification, error) {
	n := &models.Notification{}
	err := r.db.GetContext(ctx, n, `
		UPDATE notifications SET read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING `+notificationColumns, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to mark notification read: %w", translateError(err))
	}
	return n, nil
}

// MarkAllRead marks every unread notification of the user read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.RowsAffected()
}

// DeleteNotification deletes one of the user's notifications.
func (r *NotificationRepository) DeleteNotification(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", translateError(err))
	}
	return requireOneRow(res, ErrNotFound)
}
