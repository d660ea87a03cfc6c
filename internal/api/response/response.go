// Package response writes the JSON envelope shared by every API endpoint and
// translates service, repository and credential errors into HTTP statuses.
//
// Every body has the shape
//
//	{"success": bool, "data": ..., "message": "...", "errors": [{"field": "...", "message": "..."}]}
//
// Handlers never write storage errors themselves; they call Error.
package response

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Envelope is the body of every API response.
type Envelope struct {
	Success bool         `json:"success"`
	Data    interface{}  `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Stack   string       `json:"stack,omitempty"`
}

var includeStack atomic.Bool

// IncludeStack controls whether 500 responses carry a stack trace. It is
// enabled outside production.
func IncludeStack(enabled bool) {
	includeStack.Store(enabled)
}

// OK writes a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Message writes a 200 response carrying only a message.
func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: msg})
}

// DataMessage writes a 200 response with both data and a message.
func DataMessage(c *gin.Context, data interface{}, msg string) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Message: msg})
}

// Fail aborts with status and msg.
func Fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: msg})
}

// Unauthorized aborts with 401.
func Unauthorized(c *gin.Context, msg string) {
	Fail(c, http.StatusUnauthorized, msg)
}

// Forbidden aborts with 403.
func Forbidden(c *gin.Context, msg string) {
	Fail(c, http.StatusForbidden, msg)
}

// NotFound aborts with 404.
func NotFound(c *gin.Context, msg string) {
	Fail(c, http.StatusNotFound, msg)
}

// BadRequest aborts with 400 and optional per-field errors.
func BadRequest(c *gin.Context, msg string, fields ...FieldError) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{Success: false, Message: msg, Errors: fields})
}

// IDParam returns the path parameter name when it is a well-formed UUID.
// Otherwise it aborts with 400 and returns false.
func IDParam(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		BadRequest(c, "Validation failed", FieldError{Field: name, Message: "must be a valid id"})
		return "", false
	}
	return id, true
}
