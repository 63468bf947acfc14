// Package handlers implements the comment and service endpoints.
//
// Every failure is written as an ErrorResponse with a stable code from
// errors.go; service errors go through writeError, which owns the mapping from
// domain sentinels to HTTP statuses:
//
//	HTTP/1.1 403 Forbidden
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "forbidden",
//	  "message": "invalid signature"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-comments-backend/internal/http/middleware"
	"github.com/tbourn/go-comments-backend/internal/services"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Safe to show to end users
	Message string `json:"message" example:"comment not found"`
}

// fail aborts with an ErrorResponse. Server-side failures are also logged
// through the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("route", c.FullPath())
		if last := c.Errors.Last(); last != nil {
			ev = ev.Err(last.Err)
		}
		ev.Msg("request failed")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router write fallbacks (404/405) in the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// statusFor classifies a service error. Anything unrecognised is internal.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, services.ErrServiceNotFound),
		errors.Is(err, services.ErrCommentNotFound),
		errors.Is(err, services.ErrParentNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, services.ErrDuplicateService):
		return http.StatusBadRequest, ErrCodeConflict
	case services.IsValidation(err):
		return http.StatusBadRequest, ErrCodeBadRequest
	}
	return http.StatusInternalServerError, ErrCodeInternal
}

// writeError translates a service error into the envelope. The raw text of an
// internal error is attached to the Gin context for the logs and never sent
// to the client.
func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		fail(c, status, code, "internal server error")
		return
	}
	fail(c, status, code, err.Error())
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
