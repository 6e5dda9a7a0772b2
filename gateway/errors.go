package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed exchange with the backend
type Kind int

const (
	// NetworkFailure means the request never reached the backend
	NetworkFailure Kind = iota
	// AuthFailure is a 401; it is the only kind with a global side effect
	AuthFailure
	// ValidationFailure is a 4xx other than 401, or input rejected before sending
	ValidationFailure
	// ServerFailure is a 5xx or a response body of an unexpected shape
	ServerFailure
)

func (k Kind) String() string {
	switch k {
	case NetworkFailure:
		return "network failure"
	case AuthFailure:
		return "authentication failure"
	case ValidationFailure:
		return "validation failure"
	case ServerFailure:
		return "server failure"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// fallback messages when the backend did not send one
const (
	MsgNetwork    = "unable to reach the server"
	MsgAuth       = "authentication required"
	MsgValidation = "the request was rejected"
	MsgServer     = "an error occurred"
	MsgMalformed  = "unexpected response from the server"
)

// Error is the normalized form of every failed exchange. The raw backend body
// never crosses the gateway; only its message does.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a ValidationFailure for input rejected on the client
func Validation(message string) *Error {
	return &Error{Kind: ValidationFailure, Message: message}
}

// KindOf returns the kind of err, or ServerFailure when err did not come from
// the gateway
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}

	return ServerFailure
}

// Message derives a human readable message from any error. It never returns an
// empty string for a non-nil error.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var gerr *Error
	if errors.As(err, &gerr) && gerr.Message != "" {
		return gerr.Message
	}

	if msg := err.Error(); msg != "" {
		return msg
	}

	return MsgServer
}

// IsUnauthorized reports whether err is an AuthFailure
func IsUnauthorized(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Kind == AuthFailure
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return AuthFailure
	case status >= 400 && status < 500:
		return ValidationFailure
	default:
		return ServerFailure
	}
}

func fallbackMessage(k Kind) string {
	switch k {
	case NetworkFailure:
		return MsgNetwork
	case AuthFailure:
		return MsgAuth
	case ValidationFailure:
		return MsgValidation
	default:
		return MsgServer
	}
}
