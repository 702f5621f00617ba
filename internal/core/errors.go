package core

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so callers can react to it without inspecting
// backend messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindReferential
	KindPermission
	KindIntegrity
	KindSchema
	KindNotFound
	KindAuth
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindReferential:
		return "referential"
	case KindPermission:
		return "permission"
	case KindIntegrity:
		return "integrity"
	case KindSchema:
		return "schema"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is the single error type crossing the store boundary. Adapters map
// backend failures into it exactly once.
type Error struct {
	Kind    Kind
	Op      string // operation, e.g. "create_stock_item"
	Field   string // offending input field, validation only
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an Error with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. An err that already carries a kind keeps it.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// FieldError reports invalid user input for a single field.
func FieldError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// KindOf returns the kind of err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is a core error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage renders err as the short text shown in the notification toast.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ce *Error
	if !errors.As(err, &ce) {
		return "Something went wrong. Please try again."
	}
	msg := ce.Message
	if msg == "" && ce.Err != nil {
		msg = ce.Err.Error()
	}
	switch ce.Kind {
	case KindValidation, KindReferential, KindIntegrity:
		return msg
	case KindPermission:
		return "Permission denied: " + msg + ". Check that your account is allowed to write this data (row-level security policies)."
	case KindSchema:
		return "Database schema error: " + msg + ". Apply the latest migrations."
	case KindNotFound:
		if msg == "" {
			return "Record not found."
		}
		return msg
	case KindAuth:
		return "Your session has expired. Please sign in again."
	case KindUnavailable:
		return "The data service is unreachable. Please try again in a moment."
	default:
		if msg == "" {
			return "Something went wrong. Please try again."
		}
		return "Something went wrong: " + msg
	}
}
