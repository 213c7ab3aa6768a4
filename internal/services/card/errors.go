package card

import "errors"

// Card-related errors
var (
	// Validation errors
	ErrEmptyTitle          = errors.New("card title cannot be empty")
	ErrTitleTooLong        = errors.New("card title cannot exceed 255 characters")
	ErrDescriptionTooLong  = errors.New("card description cannot exceed 10000 characters")
	ErrInvalidCardID       = errors.New("invalid card ID")
	ErrInvalidProjectID    = errors.New("invalid project ID")
	ErrInvalidPriority     = errors.New("invalid priority (must be low, medium, high or urgent)")
	ErrInvalidPosition     = errors.New("invalid position: must be >= 0")
	ErrConflictingUpdate   = errors.New("a field cannot be both set and cleared")
	ErrInvalidLabelID      = errors.New("invalid label ID")
	ErrInvalidColumnTarget = errors.New("cards can only be placed in board columns of their project")

	// Business logic errors
	ErrCardNotFound       = errors.New("card not found")
	ErrCardArchived       = errors.New("card is archived")
	ErrCardNotArchived    = errors.New("card is not archived")
	ErrNoColumns          = errors.New("project has no columns")
	ErrAssigneeNotMember  = errors.New("assignee is not a member of this project")
	ErrStoryNotInProject  = errors.New("story does not belong to this project")
	ErrLabelNotInProject  = errors.New("label does not belong to this project")
	ErrColumnNotInProject = errors.New("column does not belong to this project")
)
