package domain

import "fmt"

// ErrNotFound indicates a lookup by ID found no matching row.
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found with ID: %s", e.Entity, e.ID)
}

// ValidationError indicates invalid caller input. The management API maps
// this to an HTTP 400 response.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(message string) error {
	return ValidationError{Message: message}
}

// PartialTriggerError is returned by TriggerEvent when an error is hit
// while queuing delivery records for the matching subscriptions. Queued
// holds the records that were successfully created before the failure
// (possibly none), so the caller can decide whether to treat the trigger as a
// partial success or retry the remainder itself.
type PartialTriggerError struct {
	Queued []*DeliveryRecord
	Err    error
}

func (e *PartialTriggerError) Error() string {
	return fmt.Sprintf("queued %d of the matching deliveries before failing: %v", len(e.Queued), e.Err)
}

func (e *PartialTriggerError) Unwrap() error {
	return e.Err
}
