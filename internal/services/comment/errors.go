package comment

import "errors"

// Comment-related errors
var (
	// Validation errors
	ErrEmptyBody        = errors.New("comment cannot be empty")
	ErrBodyTooLong      = errors.New("comment cannot exceed 5000 characters")
	ErrInvalidCommentID = errors.New("invalid comment ID")
	ErrInvalidCardID    = errors.New("invalid card ID")

	// Business logic errors
	ErrCommentNotFound = errors.New("comment not found")
	ErrCardNotFound    = errors.New("card not found")
	ErrNotAuthor       = errors.New("only the author can edit a comment")
)
