package service

import "fmt"

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// ValidationError represents a validation error
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// PersistenceError represents a failure of the durable store. It is the
// caller's problem: nothing partial is left behind when it is returned.
type PersistenceError struct {
	Message string
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s", e.Message)
}
