package core

import (
	"errors"
	"fmt"
)

// ErrDuplicateCategory is returned when a category name is already registered.
var ErrDuplicateCategory = errors.New("category already exists")

// ValidationError reports an input rejected before any mutation took place.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrNotFound is returned when an operation references an unknown record.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err carries an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a duplicate category or a blocking rule violation.
func IsConflict(err error) bool {
	var rv RuleViolationError
	return errors.Is(err, ErrDuplicateCategory) || errors.As(err, &rv)
}
