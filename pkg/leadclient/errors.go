package leadclient

import "errors"

// Kind classifies a submission failure so callers can pick the right
// user-facing reaction without string matching.
type Kind string

const (
	// KindValidation means the form failed the local pre-checks and was
	// never sent.
	KindValidation Kind = "validation"
	// KindSecurity covers CSRF problems: the token could not be obtained
	// or the server refused it. Reloading the page gets a fresh one.
	KindSecurity Kind = "security"
	// KindServer is a non-JSON failure status from the gateway.
	KindServer Kind = "server"
	// KindMalformed means the response body was not valid JSON.
	KindMalformed Kind = "malformed"
	// KindConnectivity is a transport-level failure before any response.
	KindConnectivity Kind = "connectivity"
)

// ErrSubmissionInFlight is returned while a previous Submit on the same
// client has not finished.
var ErrSubmissionInFlight = errors.New("leadclient: submission already in flight")

// Error is a classified submission failure.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// UserMessage returns the ready-to-display text for this failure.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindValidation:
		return e.msg
	case KindSecurity:
		return "Ошибка безопасности. Пожалуйста, обновите страницу и попробуйте снова."
	case KindServer:
		return "Ошибка сервера. Пожалуйста, попробуйте позже."
	case KindMalformed:
		return "Ошибка обработки ответа сервера. Пожалуйста, попробуйте позже."
	case KindConnectivity:
		return "Ошибка подключения. Проверьте интернет-соединение и попробуйте позже."
	default:
		return "Ошибка при отправке. Попробуйте позже."
	}
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, msg: msg, cause: cause}
}
