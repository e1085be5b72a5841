package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindInvalidRequest  Kind = "invalid_request"
	KindNotFound        Kind = "not_found"
	KindInternal        Kind = "internal"
)

type classifiedError struct {
	kind    Kind
	message string
	cause   error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return e.message
	}
	if e.message == "" {
		return e.cause.Error()
	}
	return e.message + ": " + e.cause.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

// New returns an error of the given kind with a client-facing message.
func New(kind Kind, format string, args ...any) error {
	return &classifiedError{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause. A nil cause yields nil.
func Wrap(cause error, kind Kind, message string) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{kind: kind, message: message, cause: cause}
}

func Unauthenticated(format string, args ...any) error {
	return New(KindUnauthenticated, format, args...)
}

func Forbidden(format string, args ...any) error {
	return New(KindForbidden, format, args...)
}

func InvalidRequest(format string, args ...any) error {
	return New(KindInvalidRequest, format, args...)
}

func NotFound(format string, args ...any) error {
	return New(KindNotFound, format, args...)
}

func Internal(cause error, message string) error {
	return Wrap(cause, KindInternal, message)
}

// KindOf reports the outermost classification of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message. Internal errors never expose their cause.
func MessageOf(err error) string {
	var classified *classifiedError
	if !errors.As(err, &classified) {
		return "Internal server error"
	}
	if classified.kind == KindInternal {
		if classified.message != "" {
			return classified.message
		}
		return "Internal server error"
	}
	return classified.Error()
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case "":
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
