package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when the requested entity does not exist.
type NotFoundError struct {
	Entity string
}

func NewNotFoundError(entity string) error {
	return &NotFoundError{Entity: entity}
}

func (err NotFoundError) Error() string {
	return err.Entity + " not found"
}

// ConflictError is returned when a write collides with existing data (duplicate allocation, taken seat...).
type ConflictError struct {
	Entity string
	Msg    string
}

func NewConflictError(entity, msg string) error {
	return &ConflictError{Entity: entity, Msg: msg}
}

func (err ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", err.Entity, err.Msg)
}

// BackendError wraps a storage failure with the operation and entity it happened on.
type BackendError struct {
	Op     string
	Entity string
	Err    error
}

func NewBackendError(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Entity: entity, Err: err}
}

func (err BackendError) Error() string {
	return fmt.Sprintf("%s %s: %v", err.Op, err.Entity, err.Err)
}

func (err BackendError) Cause() error  { return err.Err }
func (err BackendError) Unwrap() error { return err.Err }

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
