package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error so transports can map it to a status.
type Kind int

const (
	KindInternal Kind = iota
	KindAuth
	KindForbidden
	KindValidation
	KindResolution
	KindConfiguration
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindResolution:
		return "resolution"
	case KindConfiguration:
		return "configuration"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified error. Field names the offending input when known.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, field, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

func Auth(format string, args ...interface{}) *Error {
	return newf(KindAuth, "", format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newf(KindForbidden, "", format, args...)
}

func Validation(field, format string, args ...interface{}) *Error {
	return newf(KindValidation, field, format, args...)
}

func Resolution(field, format string, args ...interface{}) *Error {
	return newf(KindResolution, field, format, args...)
}

func Configuration(format string, args ...interface{}) *Error {
	return newf(KindConfiguration, "", format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, "", format, args...)
}

func Conflict(field, format string, args ...interface{}) *Error {
	return newf(KindConflict, field, format, args...)
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
