package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// FieldError describes a single invalid attribute.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports structural problems with a record, one entry per field.
type ValidationError struct {
	Entity EntityType   `json:"entity"`
	Fields []FieldError `json:"fields"`
}

// NewValidationError builds a validation error for entity.
func NewValidationError(entity EntityType, fields ...FieldError) ValidationError {
	return ValidationError{Entity: entity, Fields: fields}
}

func (e ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, "; "))
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// fieldErrors accumulates field errors and converts them into a ValidationError.
type fieldErrors struct {
	entity EntityType
	fields []FieldError
}

func (f *fieldErrors) add(field, format string, args ...any) {
	f.fields = append(f.fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (f *fieldErrors) err() error {
	if len(f.fields) == 0 {
		return nil
	}
	return ValidationError{Entity: f.entity, Fields: f.fields}
}

// ReferentialIntegrityError is returned when a delete would orphan dependents.
type ReferentialIntegrityError struct {
	Entity    EntityType
	ID        string
	Dependent EntityType
	Count     int
}

func (e ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("%s %s is still referenced by %d %s record(s)", e.Entity, e.ID, e.Count, e.Dependent)
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
