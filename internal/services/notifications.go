package services

import (
	"context"
	"errors"

	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
)

// NotificationService exposes a user's own in-app notifications.
type NotificationService struct {
	notifications NotificationStore
}

// NewNotificationService creates a NotificationService.
func NewNotificationService(notifications NotificationStore) *NotificationService {
	return &NotificationService{notifications: notifications}
}

// List returns the newest notifications of actor.
func (s *NotificationService) List(ctx context.Context, actor *models.User, unreadOnly bool) ([]*models.Notification, error) {
	return s.notifications.ListForUser(ctx, actor.ID, unreadOnly)
}

// UnreadCount returns how many unread notifications actor has.
func (s *NotificationService) UnreadCount(ctx context.Context, actor *models.User) (int, error) {
	return s.notifications.UnreadCount(ctx, actor.ID)
}

// MarkRead marks one of actor's notifications read.
func (s *NotificationService) MarkRead(ctx context.Context, actor *models.User, id string) (*models.Notification, error) {
	n, err := s.notifications.MarkRead(ctx, id, actor.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotificationNotFound
	}
	return n, err
}

// MarkAllRead marks all of actor's notifications read and reports how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor *models.User) (int64, error) {
	return s.notifications.MarkAllRead(ctx, actor.ID)
}

// Delete removes one of actor's notifications.
func (s *NotificationService) Delete(ctx context.Context, actor *models.User, id string) error {
	err := s.notifications.DeleteNotification(ctx, id, actor.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}
