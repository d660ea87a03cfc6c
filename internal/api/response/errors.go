package response

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/db/repositories"
	"github.com/projecthub/projecthub/internal/services"
	"github.com/projecthub/projecthub/internal/storage"
)

// Problem is the classified form of an error.
type Problem struct {
	Status  int
	Message string
	Fields  []FieldError
}

type mapping struct {
	target error
	status int
}

// Sentinels are matched in order; the sentinel's own text becomes the message
// so wrapped internal detail never reaches the client.
var mappings = []mapping{
	{auth.ErrInvalidToken, http.StatusUnauthorized},
	{auth.ErrExpiredToken, http.StatusUnauthorized},
	{services.ErrInvalidCredentials, http.StatusUnauthorized},

	{services.ErrForbidden, http.StatusForbidden},

	{services.ErrTeamNotFound, http.StatusNotFound},
	{services.ErrUserNotFound, http.StatusNotFound},
	{services.ErrProjectNotFound, http.StatusNotFound},
	{services.ErrTaskNotFound, http.StatusNotFound},
	{services.ErrNotificationNotFound, http.StatusNotFound},
	{repositories.ErrMemberNotFound, http.StatusNotFound},
	{repositories.ErrInvitationNotFound, http.StatusNotFound},
	{repositories.ErrInvalidReference, http.StatusNotFound},
	{repositories.ErrNotFound, http.StatusNotFound},

	{repositories.ErrAlreadyMember, http.StatusBadRequest},
	{repositories.ErrEmailTaken, http.StatusBadRequest},
	{repositories.ErrDuplicate, http.StatusBadRequest},
	{services.ErrOwnerRemoval, http.StatusBadRequest},
	{services.ErrOwnerDemotion, http.StatusBadRequest},
	{services.ErrInvalidResetToken, http.StatusBadRequest},
	{services.ErrSelfDelete, http.StatusBadRequest},
	{storage.ErrUnsupportedImage, http.StatusBadRequest},
	{storage.ErrEmptyUpload, http.StatusBadRequest},
	{repositories.ErrInvalidInput, http.StatusBadRequest},
}

// Classify maps err onto a status, a client-safe message and field errors.
// Unrecognized errors classify as 500.
func Classify(err error) Problem {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		return Problem{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Fields:  []FieldError{{Field: ve.Field, Message: ve.Message}},
		}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: jsonField(fe), Message: describe(fe)})
		}
		return Problem{Status: http.StatusBadRequest, Message: "Validation failed", Fields: fields}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return Problem{Status: http.StatusBadRequest, Message: "Invalid request body"}
	}

	if errors.Is(err, auth.ErrWeakPassword) {
		return Problem{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Fields:  []FieldError{{Field: "password", Message: auth.ErrWeakPassword.Error()}},
		}
	}

	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return Problem{Status: m.status, Message: capitalize(m.target.Error())}
		}
	}
	return Problem{Status: http.StatusInternalServerError, Message: "Internal server error"}
}

// Error classifies err and aborts the request with the matching response.
// Server errors are logged with the request id; client errors are not.
func Error(c *gin.Context, err error) {
	p := Classify(err)
	env := Envelope{Success: false, Message: p.Message, Errors: p.Fields}
	if p.Status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString("request_id"),
			"error", err,
		)
		if includeStack.Load() {
			env.Message = err.Error()
			env.Stack = string(debug.Stack())
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(p.Status, env)
}

func jsonField(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return ""
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "uuid", "uuid4":
		return "must be a valid id"
	}
	return "is invalid"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
