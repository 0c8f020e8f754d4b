// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDefinitionNotFound indicates a workflow definition was not found by
	// the given identifier.
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrNoDefaultDefinition indicates no default definition exists for the
	// requested entity type.
	ErrNoDefaultDefinition = errors.New("no default workflow definition for entity type")

	// ErrInstanceNotFound indicates a workflow instance was not found.
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrInstanceAlreadyExists indicates an instance already exists for the
	// same (entity type, entity ID) pair.
	ErrInstanceAlreadyExists = errors.New("workflow instance already exists for entity")

	// ErrVersionConflict indicates an optimistic concurrency check failed on
	// an instance update.
	ErrVersionConflict = errors.New("workflow instance version conflict")

	// ErrApprovalNotFound indicates an approval row was not found.
	ErrApprovalNotFound = errors.New("approval not found")
)

// InstanceError wraps instance-related errors with additional context.
type InstanceError struct {
	Op         string // Operation being performed (e.g. "GetByID", "Update")
	InstanceID string // Instance ID if applicable
	EntityType string // Entity type for entity-keyed operations
	EntityID   string // Entity ID for entity-keyed operations
	Err        error  // Underlying error
}

func (e *InstanceError) Error() string {
	target := e.InstanceID
	if target == "" {
		target = fmt.Sprintf("entity %s/%s", e.EntityType, e.EntityID)
	}

	return fmt.Sprintf("%s operation failed for instance %s: %v", e.Op, target, e.Err)
}

func (e *InstanceError) Unwrap() error {
	return e.Err
}

func (e *InstanceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewInstanceError creates a new instance error with context.
func NewInstanceError(op, instanceID string, err error) *InstanceError {
	return &InstanceError{
		Op:         op,
		InstanceID: instanceID,
		Err:        err,
	}
}

// DefinitionError wraps definition-related errors with additional context.
type DefinitionError struct {
	Op           string
	DefinitionID string
	EntityType   string
	Err          error
}

func (e *DefinitionError) Error() string {
	target := e.DefinitionID
	if target == "" {
		target = fmt.Sprintf("entity type %s", e.EntityType)
	}

	return fmt.Sprintf("%s operation failed for definition %s: %v", e.Op, target, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

func (e *DefinitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// ApprovalError wraps approval-related errors with additional context.
type ApprovalError struct {
	Op         string
	ApprovalID string
	Err        error
}

func (e *ApprovalError) Error() string {
	return fmt.Sprintf("%s operation failed for approval %s: %v", e.Op, e.ApprovalID, e.Err)
}

func (e *ApprovalError) Unwrap() error {
	return e.Err
}

func (e *ApprovalError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsDefinitionNotFound checks if an error indicates a missing definition.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}

// IsNoDefaultDefinition checks if an error indicates a missing default
// definition for an entity type.
func IsNoDefaultDefinition(err error) bool {
	return errors.Is(err, ErrNoDefaultDefinition)
}

// IsInstanceNotFound checks if an error indicates a missing instance.
func IsInstanceNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}

// IsInstanceAlreadyExists checks if an error indicates a duplicate instance
// for an entity.
func IsInstanceAlreadyExists(err error) bool {
	return errors.Is(err, ErrInstanceAlreadyExists)
}

// IsVersionConflict checks if an error indicates an optimistic concurrency
// failure.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsApprovalNotFound checks if an error indicates a missing approval.
func IsApprovalNotFound(err error) bool {
	return errors.Is(err, ErrApprovalNotFound)
}
