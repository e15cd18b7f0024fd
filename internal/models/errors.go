package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the HTTP layer can map them to statuses.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindForbidden  ErrorKind = "forbidden"
	KindStorage    ErrorKind = "storage"
)

// Error is the single error type returned by the lifecycle engine and services.
type Error struct {
	Kind    ErrorKind
	Field   string // set for validation failures tied to one input
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindStorage {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func ValidationError(field, format string, args ...any) error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func NotFoundError(entity string) error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func ConflictError(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

func ForbiddenError(message string) error {
	return &Error{Kind: KindForbidden, Message: message}
}

// StorageError wraps a persistence failure. A nil err yields nil.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: KindStorage, Message: op, Err: err}
}

// KindOf returns the kind of err, or KindStorage for untyped errors.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindStorage
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// MsgTaskUnavailable is reported when a task was claimed or reassigned concurrently.
const MsgTaskUnavailable = "task is no longer available"
