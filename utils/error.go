package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError reports malformed or out-of-range input. It is raised before
// any mutation and always names the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s (field=%s value=%q)", e.Message, e.Field, e.Value)
}

func NewValidationError(field string, value string, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError reports a missing shift/pack/opening. In settlement it aborts
// the whole call; no partial commit.
type NotFoundError struct {
	Resource string
	Id       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Id)
}

func NewNotFoundError(resource string, id any) *NotFoundError {
	return &NotFoundError{Resource: resource, Id: fmt.Sprint(id)}
}

func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
