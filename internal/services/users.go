package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
	"github.com/projecthub/projecthub/internal/storage"
)

// ErrSelfDelete is returned when an administrator tries to delete their own account.
var ErrSelfDelete = errors.New("you cannot delete your own account")

// UserDirectory is the user persistence needed for account management.
type UserDirectory interface {
	UserStore
	UpdateUser(ctx context.Context, user *models.User) error
	UpdateAvatar(ctx context.Context, userID, avatarURL string) error
	DeleteUser(ctx context.Context, userID string) error
	ListUsers(ctx context.Context, search string, limit, offset int) ([]*models.User, int, error)
}

var _ UserDirectory = (*repositories.UserRepository)(nil)

// UserService manages user profiles and avatars.
type UserService struct {
	users   UserDirectory
	avatars storage.Storage
}

// NewUserService creates a UserService. avatars may be nil, in which case
// avatar uploads fail.
func NewUserService(users UserDirectory, avatars storage.Storage) *UserService {
	return &UserService{users: users, avatars: avatars}
}

// UserPage is one page of a user listing.
type UserPage struct {
	Users   []*models.User `json:"users"`
	Page    int            `json:"page"`
	PerPage int            `json:"perPage"`
	Total   int            `json:"total"`
}

// UserUpdate carries a partial profile update. Nil fields are left unchanged.
type UserUpdate struct {
	Name   *string
	Email  *string
	Role   *string
	Avatar *string
}

// ListUsers returns one page of users matching search on name or email.
func (s *UserService) ListUsers(ctx context.Context, search string, page, perPage int) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	users, total, err := s.users.ListUsers(ctx, search, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: users, Page: page, PerPage: perPage, Total: total}, nil
}

// GetUser returns a user by id.
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// UpdateUser applies a profile update. Users may edit themselves; only
// administrators may edit others or change a role.
func (s *UserService) UpdateUser(ctx context.Context, actor *models.User, userID string, in UserUpdate) (*models.User, error) {
	if actor.ID != userID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalid("name", "name is required")
		}
		u.Name = name
	}
	if in.Email != nil {
		email := repositories.NormalizeEmail(*in.Email)
		if email == "" {
			return nil, invalid("email", "email is required")
		}
		u.Email = email
	}
	if in.Role != nil && *in.Role != u.Role {
		if !actor.IsAdmin() {
			return nil, ErrForbidden
		}
		if !auth.Role(*in.Role).Valid() {
			return nil, invalid("role", "role must be one of admin, member, viewer")
		}
		u.Role = *in.Role
	}
	if in.Avatar != nil {
		u.AvatarURL = nonEmpty(in.Avatar)
	}

	err = s.users.UpdateUser(ctx, u)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser deletes an account. Only administrators may delete, and never themselves.
func (s *UserService) DeleteUser(ctx context.Context, actor *models.User, userID string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if actor.ID == userID {
		return ErrSelfDelete
	}
	err := s.users.DeleteUser(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	slog.Info("user deleted", "user_id", userID, "actor_id", actor.ID)
	return nil
}

// SetAvatar stores an uploaded image as the user's avatar and removes the
// previous one when it lived in the same storage.
func (s *UserService) SetAvatar(ctx context.Context, actor *models.User, userID, filename string, data []byte) (*models.User, error) {
	if actor.ID != userID {
		return nil, ErrForbidden
	}
	if s.avatars == nil {
		return nil, errors.New("avatar storage is not configured")
	}
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	res, err := storage.PutAvatar(ctx, s.avatars, userID, filename, data)
	if err != nil {
		return nil, err
	}
	err = s.users.UpdateAvatar(ctx, userID, res.URL)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if u.AvatarURL != nil {
		if old := storage.KeyFromURL(userID, *u.AvatarURL); old != "" && old != res.Path {
			if err := s.avatars.Delete(ctx, old); err != nil {
				slog.Warn("failed to delete previous avatar", "user_id", userID, "path", old, "error", err)
			}
		}
	}
	u.AvatarURL = &res.URL
	return u, nil
}
