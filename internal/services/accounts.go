package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
)

// AccountService handles registration, login and password reset.
type AccountService struct {
	users  UserStore
	teams  *TeamService
	tokens *auth.TokenIssuer
	mailer AccountMailer

	bcryptCost int
}

// NewAccountService creates an AccountService. teams may be nil, in which case
// invitation tokens passed to Register are ignored.
func NewAccountService(users UserStore, teams *TeamService, tokens *auth.TokenIssuer, mailer AccountMailer) *AccountService {
	return &AccountService{users: users, teams: teams, tokens: tokens, mailer: mailer, bcryptCost: auth.BcryptCost}
}

// WithBcryptCost sets the work factor for newly hashed passwords.
func (s *AccountService) WithBcryptCost(cost int) *AccountService {
	if cost > 0 {
		s.bcryptCost = cost
	}
	return s
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	InviteToken string
}

// Session is a user together with a freshly issued access token. Team is set
// when registration redeemed an invitation.
type Session struct {
	User  *models.User       `json:"user"`
	Token string             `json:"token"`
	Team  *models.TeamDetail `json:"team,omitempty"`
}

// Register creates an account and signs the user in. When InviteToken names
// a live invitation addressed to the same email, the new user joins that team.
// Any other token leaves the account without membership.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "name is required")
	}
	email := repositories.NormalizeEmail(in.Email)
	if email == "" {
		return nil, invalid("email", "email is required")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, invalid("password", err.Error())
	}

	hash, err := auth.HashPasswordWithCost(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{Name: name, Email: email, PasswordHash: hash, Role: string(auth.RoleMember)}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	slog.Info("user registered", "user_id", user.ID)
	s.mailer.Welcome(user.Email, user.Name)

	session := &Session{User: user}
	if in.InviteToken != "" && s.teams != nil {
		team, err := s.teams.RedeemInvitation(ctx, in.InviteToken, user)
		switch {
		case err == nil:
			session.Team = team
		case errors.Is(err, repositories.ErrInvitationNotFound):
			slog.Info("registration invitation not applied", "user_id", user.ID)
		default:
			slog.Warn("failed to redeem invitation during registration", "user_id", user.ID, "error", err)
		}
	}

	session.Token, err = s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return session, nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// equalizeTiming spends one bcrypt comparison so unknown emails take as long
// as wrong passwords.
func equalizeTiming(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = auth.HashPassword("not-a-real-password-0")
	})
	auth.VerifyPassword(password, dummyHash)
}

// Login verifies credentials and issues an access token.
func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetUserByEmail(ctx, repositories.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		equalizeTiming(password)
		return nil, ErrInvalidCredentials
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		slog.Info("login failed", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token}, nil
}

// ForgotPassword emails a reset link when email belongs to an account. It
// reports success either way so callers cannot probe for registered emails.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, repositories.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	token, err := s.tokens.IssuePasswordReset(user.ID, user.PasswordHash)
	if err != nil {
		return err
	}
	s.mailer.PasswordReset(user.Email, token)
	slog.Info("password reset requested", "user_id", user.ID)
	return nil
}

// ResetPassword sets a new password using a reset token. A token stops
// working once the password it was issued against has changed.
func (s *AccountService) ResetPassword(ctx context.Context, token, password string) error {
	userID, fingerprint, err := s.tokens.VerifyPasswordReset(token)
	if err != nil {
		return ErrInvalidResetToken
	}
	if err := auth.ValidatePassword(password); err != nil {
		return invalid("password", err.Error())
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || auth.Fingerprint(user.PasswordHash) != fingerprint {
		return ErrInvalidResetToken
	}
	hash, err := auth.HashPasswordWithCost(password, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	slog.Info("password reset completed", "user_id", user.ID)
	return nil
}

// Authenticate resolves an access token to its user.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, auth.ErrInvalidToken
	}
	return user, nil
}
