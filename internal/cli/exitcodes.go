package cli

import (
	"errors"

	"github.com/thenoetrevino/livekanban/internal/database"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// Exit codes for CLI commands.
// These codes follow Unix conventions and provide consistent error reporting
// across all CLI commands.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitError indicates a general error occurred.
	// Use for: Database errors, network errors, unexpected failures.
	ExitError = 1

	// ExitUsage indicates incorrect command usage.
	// Use for: Missing required flags or invalid flag combinations.
	ExitUsage = 2

	// ExitNotFound indicates a requested resource was not found.
	// Use for: Task not found, project not found.
	ExitNotFound = 3

	// ExitValidation indicates a validation error.
	// Use for: Unknown columns or priorities, empty names.
	ExitValidation = 5
)

// ErrUsage marks errors caused by how a command was invoked.
var ErrUsage = errors.New("usage error")

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	var verr *models.ValidationError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, models.ErrTaskNotFound), errors.Is(err, database.ErrProjectNotFound):
		return ExitNotFound
	case errors.Is(err, ErrUsage):
		return ExitUsage
	case errors.As(err, &verr), errors.Is(err, database.ErrNameRequired):
		return ExitValidation
	default:
		return ExitError
	}
}
