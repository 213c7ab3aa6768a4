package label

import "errors"

// Label-related errors
var (
	// Validation errors
	ErrEmptyName        = errors.New("name cannot be empty")
	ErrNameTooLong      = errors.New("name cannot exceed 50 characters")
	ErrInvalidColor     = errors.New("invalid color format (must be hex color like #FFFFFF)")
	ErrInvalidLabelID   = errors.New("invalid label ID")
	ErrInvalidProjectID = errors.New("invalid project ID")

	// Business logic errors
	ErrLabelNotFound  = errors.New("label not found")
	ErrDuplicateLabel = errors.New("a label with this name already exists in the project")
)
