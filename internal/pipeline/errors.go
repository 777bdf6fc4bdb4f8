package pipeline

import (
	"fmt"
	"net/http"
)

// Kind classifies pipeline failures. The set is closed.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthentication
	KindAuthorization
	KindInsufficientBalance
	KindOperation
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindOperation:
		return "operation"
	default:
		return "internal"
	}
}

// Error is the only error type Execute returns
type Error struct {
	Kind    Kind
	Message string

	// Required and Available are set for KindInsufficientBalance
	Required  int64
	Available int64

	// Upstream marks operation failures caused by the AI provider
	Upstream bool

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the kind to a response status
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindInsufficientBalance:
		return http.StatusPaymentRequired
	case KindOperation:
		if e.Upstream {
			return http.StatusBadGateway
		}
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func insufficientBalance(required, available int64) *Error {
	return &Error{
		Kind:      KindInsufficientBalance,
		Message:   "insufficient credits",
		Required:  required,
		Available: available,
	}
}
