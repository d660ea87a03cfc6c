// Package accounts implements the registration, login, password reset and
// user management endpoints.
package accounts

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/response"
	"github.com/projecthub/projecthub/internal/middleware"
	"github.com/projecthub/projecthub/internal/services"
)

// AccountManager is the account lifecycle used by AuthHandlers.
// *services.AccountService implements it.
type AccountManager interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

// AuthHandlers handles the /api/auth endpoints
type AuthHandlers struct {
	accounts AccountManager
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(accounts AccountManager) *AuthHandlers {
	return &AuthHandlers{accounts: accounts}
}

// RegisterRequest is the registration payload. The invitation token may be
// sent in the body or as the token query parameter.
type RegisterRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	InviteToken string `json:"inviteToken"`
}

// LoginRequest is the login payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ForgotPasswordRequest asks for a reset link
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest sets a new password with a reset token
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// @Summary      Register
// @Description  Create an account and sign in. A valid invitation token addressed to the same email joins its team.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        token  query  string           false  "Team invitation token"
// @Param        body   body   RegisterRequest  true   "Account details"
// @Success      201  {object}  response.Envelope  "data: {user, token, team?}"
// @Failure      400  {object}  response.Envelope  "Validation failed or email already registered"
// @Router       /api/auth/register [post]
// RegisterHandler creates an account
// POST /api/auth/register?token=
func (h *AuthHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
		token := req.InviteToken
		if q := c.Query("token"); q != "" {
			token = q
		}

		session, err := h.accounts.Register(c.Request.Context(), services.RegisterInput{
			Name:        req.Name,
			Email:       req.Email,
			Password:    req.Password,
			InviteToken: token,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, session)
	}
}

// @Summary      Login
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        body  body  LoginRequest  true  "Credentials"
// @Success      200  {object}  response.Envelope  "data: {user, token}"
// @Failure      401  {object}  response.Envelope  "Invalid email or password"
// @Router       /api/auth/login [post]
// LoginHandler exchanges credentials for an access token
// POST /api/auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
		session, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, session)
	}
}

// MeHandler returns the authenticated user
// GET /api/auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			response.Unauthorized(c, "Not authorized, no token")
			return
		}
		response.OK(c, user)
	}
}

// ForgotPasswordHandler emails a reset link. The response is the same whether
// or not the email is registered.
// POST /api/auth/forgot-password
func (h *AuthHandlers) ForgotPasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ForgotPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
		if err := h.accounts.ForgotPassword(c.Request.Context(), req.Email); err != nil {
			response.Error(c, err)
			return
		}
		response.Message(c, "If an account exists for that email, a password reset link has been sent")
	}
}

// ResetPasswordHandler sets a new password
// POST /api/auth/reset-password
func (h *AuthHandlers) ResetPasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
		if err := h.accounts.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
			response.Error(c, err)
			return
		}
		response.Message(c, "Password has been reset successfully")
	}
}
