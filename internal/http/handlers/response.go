// Package handlers provides HTTP handler implementations for the public status
// form, the captcha endpoints and the admin desk.
//
// This file defines the response helpers shared by all endpoints. Every error
// leaves through fail() (or one of its variants) so clients always receive an
// ErrorResponse with a stable `code`, and 5xx responses are logged with the
// request-scoped logger.
//
// Example error response:
//
//	HTTP/1.1 400 Bad Request
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "bad_request",
//	  "message": "required fields missing",
//	  "fields": { "dob": "Required" }
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/visa-track-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"captcha_mismatch"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"captcha does not match"`
	// Per-field problems ("Required", "Invalid") for validation failures
	Fields map[string]string `json:"fields,omitempty"`
	// Replacement challenge after a captcha mismatch
	Challenge *ChallengeResponse `json:"challenge,omitempty"`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	failWith(c, status, ErrorResponse{Code: code, Message: msg})
}

// failWith is fail with a pre-filled envelope (fields, challenge).
func failWith(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = c.Writer.Header().Get("X-Request-ID")

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Message).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
