package attachment

import "errors"

// Attachment-related errors
var (
	// Validation errors
	ErrInvalidFilename     = errors.New("invalid filename")
	ErrFilenameTooLong     = errors.New("filename cannot exceed 255 characters")
	ErrEmptyFile           = errors.New("file is empty")
	ErrFileTooLarge        = errors.New("file is too large")
	ErrInvalidAttachmentID = errors.New("invalid attachment ID")
	ErrInvalidCardID       = errors.New("invalid card ID")

	// Business logic errors
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrCardNotFound       = errors.New("card not found")
	ErrCardArchived       = errors.New("cannot attach files to an archived card")
)
