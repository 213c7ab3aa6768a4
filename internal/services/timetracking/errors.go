package timetracking

import "errors"

// Time tracking errors
var (
	// Validation errors
	ErrInvalidCardID    = errors.New("invalid card ID")
	ErrInvalidEntryID   = errors.New("invalid time entry ID")
	ErrInvalidProjectID = errors.New("invalid project ID")
	ErrNoteTooLong      = errors.New("note cannot exceed 500 characters")
	ErrInvalidInterval  = errors.New("entry must end after it starts")
	ErrEntryTooLong     = errors.New("entry cannot span more than 24 hours")
	ErrEntryInFuture    = errors.New("entry cannot end in the future")
	ErrInvalidWindow    = errors.New("report window must end after it starts")

	// Business logic errors
	ErrCardNotFound    = errors.New("card not found")
	ErrCardArchived    = errors.New("cannot track time on an archived card")
	ErrNoActiveTimer   = errors.New("no timer is running")
	ErrEntryNotFound   = errors.New("time entry not found")
	ErrTimerContention = errors.New("could not start timer: concurrent starts kept conflicting")
)
