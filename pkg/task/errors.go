package task

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTask = errors.New("invalid task")
	ErrNotFound    = errors.New("task not found")
	ErrStoreNil    = errors.New("task store is nil")
)

// ValidationError describes a single field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrInvalidTask) match any validation failure.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidTask
}
