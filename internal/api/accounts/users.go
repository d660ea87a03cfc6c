// users.go implements user listing, profile updates, deletion and avatar upload.
package accounts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/response"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/middleware"
	"github.com/projecthub/projecthub/internal/services"
)

// UserManager is the user management used by UserHandlers.
// *services.UserService implements it.
type UserManager interface {
	ListUsers(ctx context.Context, search string, page, perPage int) (*services.UserPage, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateUser(ctx context.Context, actor *models.User, userID string, in services.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, actor *models.User, userID string) error
	SetAvatar(ctx context.Context, actor *models.User, userID, filename string, data []byte) (*models.User, error)
}

// UserHandlers handles user management endpoints
type UserHandlers struct {
	users          UserManager
	maxAvatarBytes int64
}

// NewUserHandlers creates a new UserHandlers instance
func NewUserHandlers(users UserManager, maxAvatarBytes int64) *UserHandlers {
	return &UserHandlers{users: users, maxAvatarBytes: maxAvatarBytes}
}

// UpdateUserRequest is a partial profile update
type UpdateUserRequest struct {
	Name   *string `json:"name" binding:"omitempty,min=1,max=100"`
	Email  *string `json:"email" binding:"omitempty,email"`
	Role   *string `json:"role" binding:"omitempty,oneof=admin member viewer"`
	Avatar *string `json:"avatar"`
}

// @Summary      List users
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        page      query  int     false  "Page number (default 1)"
// @Param        per_page  query  int     false  "Items per page, max 100 (default 20)"
// @Param        search    query  string  false  "Name or email substring"
// @Success      200  {object}  response.Envelope  "data: {users, page, perPage, total}"
// @Router       /api/users [get]
// ListUsersHandler lists users with pagination
// GET /api/users?page=1&per_page=20&search=
func (h *UserHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

		result, err := h.users.ListUsers(c.Request.Context(), c.Query("search"), page, perPage)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, result)
	}
}

// GetUserHandler returns one user
// GET /api/users/:id
func (h *UserHandlers) GetUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		user, err := h.users.GetUser(c.Request.Context(), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, user)
	}
}

// UpdateUserHandler updates a profile. Only administrators may change roles.
// PUT /api/users/:id
func (h *UserHandlers) UpdateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		var req UpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
		user, err := h.users.UpdateUser(c.Request.Context(), middleware.CurrentUser(c), id, services.UserUpdate{
			Name:   req.Name,
			Email:  req.Email,
			Role:   req.Role,
			Avatar: req.Avatar,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, user)
	}
}

// DeleteUserHandler deletes a user (admin only, never self)
// DELETE /api/users/:id
func (h *UserHandlers) DeleteUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		if err := h.users.DeleteUser(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
			response.Error(c, err)
			return
		}
		response.Message(c, "User deleted successfully")
	}
}

// @Summary      Upload avatar
// @Description  Replace the caller's avatar. The multipart field is "avatar"; jpeg, jpg, png, gif and webp images only.
// @Tags         Users
// @Security     Bearer
// @Accept       multipart/form-data
// @Produce      json
// @Param        id      path      string  true  "User ID"
// @Param        avatar  formData  file    true  "Image file"
// @Success      200  {object}  response.Envelope  "data: models.User"
// @Failure      400  {object}  response.Envelope  "Missing, oversized or unsupported file"
// @Failure      403  {object}  response.Envelope  "Not your account"
// @Router       /api/users/{id}/avatar [post]
// UploadAvatarHandler stores a new avatar image
// POST /api/users/:id/avatar
func (h *UserHandlers) UploadAvatarHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.IDParam(c, "id")
		if !ok {
			return
		}
		// Leave room for the multipart envelope around the file itself.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxAvatarBytes+1<<20)

		fh, err := c.FormFile("avatar")
		if err != nil {
			response.BadRequest(c, "No file uploaded")
			return
		}
		if fh.Size > h.maxAvatarBytes {
			response.BadRequest(c, fmt.Sprintf("File too large, maximum size is %d bytes", h.maxAvatarBytes))
			return
		}
		f, err := fh.Open()
		if err != nil {
			response.BadRequest(c, "Could not read uploaded file")
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, h.maxAvatarBytes+1))
		if err != nil {
			response.BadRequest(c, "Could not read uploaded file")
			return
		}
		if int64(len(data)) > h.maxAvatarBytes {
			response.BadRequest(c, fmt.Sprintf("File too large, maximum size is %d bytes", h.maxAvatarBytes))
			return
		}

		user, err := h.users.SetAvatar(c.Request.Context(), middleware.CurrentUser(c), id, fh.Filename, data)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.DataMessage(c, user, "Avatar uploaded successfully")
	}
}
