package story

import "errors"

// Story-related errors
var (
	// Validation errors
	ErrEmptyTitle        = errors.New("story title cannot be empty")
	ErrTitleTooLong      = errors.New("story title cannot exceed 255 characters")
	ErrInvalidType       = errors.New("invalid story type (must be epic, story, task or bug)")
	ErrInvalidStatus     = errors.New("invalid story status (must be open, in_progress or done)")
	ErrInvalidPoints     = errors.New("story points must be between 0 and 100")
	ErrInvalidStoryID    = errors.New("invalid story ID")
	ErrInvalidProjectID  = errors.New("invalid project ID")
	ErrConflictingUpdate = errors.New("a field cannot be both set and cleared")

	// Business logic errors
	ErrStoryNotFound    = errors.New("story not found")
	ErrParentNotFound   = errors.New("parent story not found in this project")
	ErrRankTooHigh      = errors.New("a story cannot be nested under a lower-ranked type")
	ErrChildRankTooHigh = errors.New("a child story outranks the new type")
	ErrStoryCycle       = errors.New("a story cannot be nested under itself or its descendants")
)
