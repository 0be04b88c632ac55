// Package persistence provides standardized error types for record store
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard record store error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates no workflow exists for the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrSourceNotFound indicates the source index has no entry for the given
	// instrument identifier.
	ErrSourceNotFound = errors.New("source instrument not indexed")

	// ErrSchemaInvalid indicates a workflow record failed schema validation
	// before storage. The engine treats this as a fatal invariant violation.
	ErrSchemaInvalid = errors.New("workflow record failed schema validation")

	// ErrDuplicateSource indicates the source index already maps the
	// instrument to a different workflow.
	ErrDuplicateSource = errors.New("source instrument already indexed to another workflow")
)

// StoreError wraps record store errors with operation context.
type StoreError struct {
	Op         string // Operation being performed (e.g., "Store", "Load", "LookupBySource")
	Owner      string // Owning nym
	WorkflowID string // Workflow ID if applicable
	Err        error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.WorkflowID != "" {
		return fmt.Sprintf("%s failed for workflow %s of %s: %v", e.Op, e.WorkflowID, e.Owner, e.Err)
	}

	return fmt.Sprintf("%s failed for owner %s: %v", e.Op, e.Owner, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a record store error with context.
func NewStoreError(op, owner, workflowID string, err error) *StoreError {
	return &StoreError{
		Op:         op,
		Owner:      owner,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// IsNotFound checks whether an error indicates a missing workflow or index
// entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) || errors.Is(err, ErrSourceNotFound)
}

// IsSchemaInvalid checks whether an error indicates failed schema validation.
func IsSchemaInvalid(err error) bool {
	return errors.Is(err, ErrSchemaInvalid)
}
