package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
	"github.com/projecthub/projecthub/internal/services"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var userCols = []string{"id", "name", "email", "password_hash", "role", "avatar_url", "created_at", "updated_at"}

// stubAuthenticator returns user or err for any token.
type stubAuthenticator struct {
	user  *models.User
	err   error
	token string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (*models.User, error) {
	s.token = token
	return s.user, s.err
}

func newAuthRouter(mid gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/", mid, func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusOK, gin.H{"user": ""})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user.ID, "user_id": c.GetString(UserIDKey)})
	})
	return r
}

func getWithAuth(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bodyMap(w *httptest.ResponseRecorder) map[string]interface{} {
	var m map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	return m
}

// ---------------------------------------------------------------------------
// AuthMiddleware
// ---------------------------------------------------------------------------

func TestAuthMiddleware_RejectsMissingOrMalformedHeader(t *testing.T) {
	stub := &stubAuthenticator{user: &models.User{ID: "u1"}}
	r := newAuthRouter(AuthMiddleware(stub))

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer    "} {
		w := getWithAuth(r, header)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, w.Code)
		}
		if msg := bodyMap(w)["message"]; msg != "Not authorized, no token" {
			t.Errorf("header %q: message = %v", header, msg)
		}
	}
}

func TestAuthMiddleware_TokenErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{auth.ErrExpiredToken, http.StatusUnauthorized, "Not authorized, token expired"},
		{auth.ErrInvalidToken, http.StatusUnauthorized, "Not authorized, token failed"},
		{errors.New("db down"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		r := newAuthRouter(AuthMiddleware(&stubAuthenticator{err: tt.err}))
		w := getWithAuth(r, "Bearer tok")
		if w.Code != tt.status {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.status)
		}
		body := bodyMap(w)
		if body["message"] != tt.msg {
			t.Errorf("%v: message = %v, want %q", tt.err, body["message"], tt.msg)
		}
		if body["success"] != false {
			t.Errorf("%v: success = %v, want false", tt.err, body["success"])
		}
	}
}

func TestAuthMiddleware_SetsUser(t *testing.T) {
	stub := &stubAuthenticator{user: &models.User{ID: "u1"}}
	r := newAuthRouter(AuthMiddleware(stub))

	w := getWithAuth(r, "Bearer  abc.def.ghi ")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if stub.token != "abc.def.ghi" {
		t.Errorf("token passed = %q, want trimmed token", stub.token)
	}
	body := bodyMap(w)
	if body["user"] != "u1" || body["user_id"] != "u1" {
		t.Errorf("context = %v", body)
	}
}

// End to end through AccountService and a sqlmock-backed UserRepository.
func TestAuthMiddleware_WithAccountService(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	users := repositories.NewUserRepository(sqlx.NewDb(db, "postgres"))

	tokens, err := auth.NewTokenIssuer(auth.TokenOptions{Secret: "middleware-test-secret-0123456789abcdef", Expiry: time.Hour})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	accounts := services.NewAccountService(users, nil, tokens, nil)

	token, err := tokens.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	now := time.Now()
	mock.ExpectQuery("SELECT .+ FROM users WHERE id = \\$1").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("user-1", "Ann", "ann@example.com", "hash", "member", nil, now, now))

	r := newAuthRouter(AuthMiddleware(accounts))
	w := getWithAuth(r, "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if bodyMap(w)["user"] != "user-1" {
		t.Errorf("user = %v", bodyMap(w)["user"])
	}

	// A token for a deleted user is rejected.
	mock.ExpectQuery("SELECT .+ FROM users WHERE id = \\$1").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userCols))
	w = getWithAuth(r, "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("deleted user: status = %d, want 401", w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// OptionalAuthMiddleware
// ---------------------------------------------------------------------------

func TestOptionalAuthMiddleware(t *testing.T) {
	r := newAuthRouter(OptionalAuthMiddleware(&stubAuthenticator{err: auth.ErrInvalidToken}))
	w := getWithAuth(r, "Bearer bad")
	if w.Code != http.StatusOK || bodyMap(w)["user"] != "" {
		t.Errorf("invalid token: status %d body %v", w.Code, bodyMap(w))
	}

	r = newAuthRouter(OptionalAuthMiddleware(&stubAuthenticator{user: &models.User{ID: "u9"}}))
	if got := bodyMap(getWithAuth(r, "Bearer good"))["user"]; got != "u9" {
		t.Errorf("valid token: user = %v, want u9", got)
	}
	if got := bodyMap(getWithAuth(r, ""))["user"]; got != "" {
		t.Errorf("no header: user = %v, want empty", got)
	}
}
