package cli

import (
	"errors"

	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/project"
	"github.com/thenoetrevino/tablero/internal/services/user"
)

// Exit codes for CLI commands.
// These codes follow Unix conventions and provide consistent error reporting
// across all CLI commands.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitError indicates a general error occurred.
	// Use for: Database errors, network errors, unexpected failures,
	// or any error that doesn't fit the specific categories below.
	ExitError = 1

	// ExitUsage indicates incorrect command usage.
	// Use for: Missing required flags, invalid flag combinations,
	// or when the user needs to provide different arguments.
	ExitUsage = 2

	// ExitNotFound indicates a requested resource was not found.
	// Use for: User not found, project not found.
	ExitNotFound = 3

	// ExitDataErr indicates invalid or malformed data.
	// Use for: An unreadable or invalid configuration file.
	ExitDataErr = 4

	// ExitValidation indicates a validation error.
	// Use for: Invalid email, short password, or any case where input
	// fails validation rules.
	ExitValidation = 5

	// ExitConflict indicates the change clashes with existing data.
	// Use for: An email that is already registered.
	ExitConflict = 6
)

// UsageError marks errors caused by how the command was invoked
type UsageError struct{ Err error }

func (e UsageError) Error() string { return e.Err.Error() }
func (e UsageError) Unwrap() error { return e.Err }

// DataError marks errors caused by unreadable input such as the config file
type DataError struct{ Err error }

func (e DataError) Error() string { return e.Err.Error() }
func (e DataError) Unwrap() error { return e.Err }

// ExitCode maps a command error to the process exit status
func ExitCode(err error) int {
	var usage UsageError
	var data DataError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &usage):
		return ExitUsage
	case errors.As(err, &data):
		return ExitDataErr
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, project.ErrProjectNotFound):
		return ExitNotFound
	case errors.Is(err, user.ErrInvalidEmail),
		errors.Is(err, user.ErrEmptyName),
		errors.Is(err, user.ErrNameTooLong),
		errors.Is(err, user.ErrPasswordTooShort),
		errors.Is(err, project.ErrEmptyName),
		errors.Is(err, project.ErrNameTooLong),
		errors.Is(err, models.ErrForbidden):
		return ExitValidation
	case errors.Is(err, user.ErrEmailTaken):
		return ExitConflict
	default:
		return ExitError
	}
}

// reportedError marks an error the command already printed
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// Reported wraps err after the command has shown it through its formatter
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err: err}
}

// IsReported reports whether err was already shown to the user
func IsReported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}
