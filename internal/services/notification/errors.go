package notification

import "errors"

// Notification-related errors
var (
	// Validation errors
	ErrInvalidUserID = errors.New("invalid user ID")
	ErrInvalidKind   = errors.New("invalid notification kind")
	ErrEmptyTitle    = errors.New("notification title cannot be empty")

	// Business logic errors
	ErrNotificationNotFound = errors.New("notification not found")
)
