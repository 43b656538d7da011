package services

import (
	"errors"
	"strings"

	"github.com/linesmerrill/pocket-infra-api/models"
)

// ErrNotFound is returned when no report has the requested id
var ErrNotFound = errors.New("report not found")

// ValidationError lists every rejected input field
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Errors = append(e.Errors, models.FieldError{Field: field, Message: message})
}

// err returns nil when nothing was rejected
func (e *ValidationError) err() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
