package column

import "errors"

// Column-related errors
var (
	// Validation errors
	ErrEmptyName        = errors.New("name cannot be empty")
	ErrNameTooLong      = errors.New("name cannot exceed 50 characters")
	ErrInvalidColumnID  = errors.New("invalid column ID")
	ErrInvalidProjectID = errors.New("invalid project ID")
	ErrInvalidPosition  = errors.New("a column cannot be placed after itself")

	// Business logic errors
	ErrColumnNotFound          = errors.New("column not found")
	ErrColumnHasCards          = errors.New("cannot delete column with cards")
	ErrLastColumn              = errors.New("cannot delete the last column of a board")
	ErrArchiveColumnImmutable  = errors.New("the archive column cannot be changed")
	ErrArchiveColumnContention = errors.New("could not settle the archive column, try again")
)
