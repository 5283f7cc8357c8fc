// Package errors provides the standardized request-error taxonomy of the
// lead gateway. Every failure path maps to one of the codes below so that
// the client always receives a JSON body with a specific message.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeMethodNotAllowed   ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrCodeCSRFMissing        ErrorCode = "CSRF_MISSING"
	ErrCodeCSRFSessionMissing ErrorCode = "CSRF_SESSION_MISSING"
	ErrCodeCSRFMismatch       ErrorCode = "CSRF_MISMATCH"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeConfigError        ErrorCode = "CONFIG_ERROR"
	ErrCodeUpstreamError      ErrorCode = "UPSTREAM_ERROR"
	ErrCodeSessionUnavailable ErrorCode = "SESSION_UNAVAILABLE"
)

// StandardError represents a structured application error.
//
// Message is the user-facing text returned to the browser; Details carries
// server-side context and is only ever logged. ClientCode, when set, is
// surfaced as the "error_code" field of the JSON body (the CRM's own error
// code for upstream failures, "CONFIG_ERROR" for missing secrets); when
// empty the field is omitted, matching the wire contract of the original
// endpoints.
type StandardError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	ClientCode string                 `json:"clientCode,omitempty"`
	HTTPStatus int                    `json:"httpStatus"`
	RetryAfter int                    `json:"retryAfter,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewMethodNotAllowedError rejects non-POST submission attempts.
func NewMethodNotAllowedError() *StandardError {
	return &StandardError{
		Code:       ErrCodeMethodNotAllowed,
		Message:    "Метод не разрешен",
		HTTPStatus: http.StatusMethodNotAllowed,
		Timestamp:  time.Now().UTC(),
	}
}

// NewRateLimitedError rejects a submission that exceeded the fixed window.
// retryAfter is the number of seconds until the window resets, never below 1.
func NewRateLimitedError(retryAfter int) *StandardError {
	if retryAfter < 1 {
		retryAfter = 1
	}
	return &StandardError{
		Code:       ErrCodeRateLimited,
		Message:    "Слишком много запросов. Попробуйте позже.",
		HTTPStatus: http.StatusTooManyRequests,
		RetryAfter: retryAfter,
		Timestamp:  time.Now().UTC(),
	}
}

// NewCSRFMissingError rejects a POST that carries no csrf_token field.
func NewCSRFMissingError() *StandardError {
	return &StandardError{
		Code:       ErrCodeCSRFMissing,
		Message:    "Отсутствует CSRF токен",
		HTTPStatus: http.StatusForbidden,
		Timestamp:  time.Now().UTC(),
	}
}

// NewCSRFSessionMissingError rejects a POST whose session holds no token.
func NewCSRFSessionMissingError() *StandardError {
	return &StandardError{
		Code:       ErrCodeCSRFSessionMissing,
		Message:    "CSRF токен не найден в сессии",
		HTTPStatus: http.StatusForbidden,
		Timestamp:  time.Now().UTC(),
	}
}

// NewCSRFMismatchError rejects a POST whose token does not match the session.
func NewCSRFMismatchError() *StandardError {
	return &StandardError{
		Code:       ErrCodeCSRFMismatch,
		Message:    "Неверный CSRF токен",
		HTTPStatus: http.StatusForbidden,
		Timestamp:  time.Now().UTC(),
	}
}

// NewValidationError carries the aggregated field violations, already joined
// into one message.
func NewValidationError(joined string) *StandardError {
	return &StandardError{
		Code:       ErrCodeValidationFailed,
		Message:    joined,
		HTTPStatus: http.StatusBadRequest,
		Timestamp:  time.Now().UTC(),
	}
}

// NewConfigError reports missing CRM secrets. The client sees only a generic
// message plus the CONFIG_ERROR code; details stay in the server log.
func NewConfigError(details string) *StandardError {
	return &StandardError{
		Code:       ErrCodeConfigError,
		Message:    "Ошибка конфигурации сервера. Обратитесь к администратору.",
		Details:    details,
		ClientCode: string(ErrCodeConfigError),
		HTTPStatus: http.StatusInternalServerError,
		Timestamp:  time.Now().UTC(),
	}
}

// NewUpstreamError reports a failed CRM call. clientCode and message come
// from the CRM response when it produced one; callers fall back to
// "UNKNOWN" / "Неизвестная ошибка" for transport failures.
func NewUpstreamError(clientCode, message, details string) *StandardError {
	if clientCode == "" {
		clientCode = "UNKNOWN"
	}
	if message == "" {
		message = "Неизвестная ошибка"
	}
	return &StandardError{
		Code:       ErrCodeUpstreamError,
		Message:    message,
		Details:    details,
		ClientCode: clientCode,
		HTTPStatus: http.StatusInternalServerError,
		Timestamp:  time.Now().UTC(),
	}
}

// NewSessionUnavailableError reports a session-store failure.
func NewSessionUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:       ErrCodeSessionUnavailable,
		Message:    "Ошибка сервера. Попробуйте позже.",
		Details:    err.Error(),
		HTTPStatus: http.StatusInternalServerError,
		Timestamp:  time.Now().UTC(),
	}
}
