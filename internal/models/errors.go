package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for board operations.
var (
	// ErrTaskNotFound indicates the task is not part of the loaded board
	ErrTaskNotFound = errors.New("task not found")

	// ErrUnknownColumn indicates a column name outside the board enumeration
	ErrUnknownColumn = errors.New("unknown column")

	// ErrSameColumn indicates a move to the column the task is already in
	ErrSameColumn = errors.New("task is already in the target column")

	// ErrNoProject indicates an operation that needs a selected project
	ErrNoProject = errors.New("no project selected")
)

// ValidationError is an illegal request rejected locally. No remote call is
// made and it is not shown to the user as an error.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PersistError is a rejected remote mutation. Reason carries the message
// reported by the server and is what the user sees.
type PersistError struct {
	TaskID string
	Column ColumnName
	Reason string
	Err    error
}

func (e *PersistError) Error() string {
	return "Failed to move task: " + e.Reason
}

func (e *PersistError) Unwrap() error { return e.Err }

// NewPersistError wraps err, using its message as the user-facing reason.
func NewPersistError(taskID string, column ColumnName, err error) *PersistError {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return &PersistError{TaskID: taskID, Column: column, Reason: reason, Err: err}
}

// FetchError is a failed board or project load. The board shows no tasks
// while it is the current error.
type FetchError struct {
	ProjectID string
	Err       error
}

func (e *FetchError) Error() string {
	if e.ProjectID == "" {
		return fmt.Sprintf("failed to load projects: %v", e.Err)
	}
	return fmt.Sprintf("failed to load tasks for project %s: %v", e.ProjectID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TransportError is a subscription or connection failure of the push feed.
// It is logged and never fatal.
type TransportError struct {
	Channel string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("event transport error on %q: %v", e.Channel, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
