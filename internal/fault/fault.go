// Package fault defines the structured error kinds surfaced by the
// negotiation core: validation, not-found, and race-condition failures.
// Persistence errors are wrapped with %w at the call site and carry no
// dedicated type here.
package fault

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input to a core operation. Never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports that a referenced entity does not exist. The entity
// kind and id give the caller enough detail to build a useful message.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// NotFound builds a NotFoundError for the given entity kind and id.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// RaceConditionError reports that an operation requiring exclusivity
// observed a conflicting concurrent write. Safe to retry once.
type RaceConditionError struct {
	Op     string
	Detail string
}

func (e *RaceConditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

// Race builds a RaceConditionError.
func Race(op, format string, args ...interface{}) error {
	return &RaceConditionError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsRace reports whether err is or wraps a RaceConditionError.
func IsRace(err error) bool {
	var rc *RaceConditionError
	return errors.As(err, &rc)
}
