// internal/common/errors/handler.go
package errors

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponder resolves errors at the HTTP boundary with standardized
// JSON bodies, so the browser can always render a specific message.
type ErrorResponder struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorResponder(logger Logger) *ErrorResponder {
	return &ErrorResponder{logger: logger}
}

// errorBody is the client-facing JSON shape shared by every failure path.
type errorBody struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Respond normalizes err, logs it with server-side detail, and writes the
// JSON error body. A 429 additionally carries a Retry-After header.
func (r *ErrorResponder) Respond(c *gin.Context, err error) {
	stdErr := r.normalizeError(err)

	r.logError(c, stdErr)

	if stdErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(stdErr.RetryAfter))
	}

	c.JSON(stdErr.HTTPStatus, errorBody{
		Success:   false,
		Error:     stdErr.Message,
		ErrorCode: stdErr.ClientCode,
	})
}

// normalizeError ensures we always have a StandardError.
func (r *ErrorResponder) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:       "INTERNAL_ERROR",
		Message:    "Неизвестная ошибка",
		Details:    err.Error(),
		HTTPStatus: http.StatusInternalServerError,
		Timestamp:  time.Now().UTC(),
	}
}

func (r *ErrorResponder) logError(c *gin.Context, stdErr *StandardError) {
	fields := map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"message":   stdErr.Message,
		"details":   stdErr.Details,
		"status":    stdErr.HTTPStatus,
		"path":      c.FullPath(),
		"clientIP":  c.ClientIP(),
	}

	// Client mistakes are expected traffic; only server-side failures are
	// errors proper.
	if stdErr.HTTPStatus >= http.StatusInternalServerError {
		r.logger.Error("Request failed", fields)
		return
	}
	r.logger.Warn("Request rejected", fields)
}
