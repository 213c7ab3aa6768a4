package models

import "errors"

// Permission errors shared by every service
var (
	// ErrNotMember indicates the acting user does not belong to the project
	ErrNotMember = errors.New("not a member of this project")

	// ErrForbidden indicates the acting user's role is too low for the operation
	ErrForbidden = errors.New("insufficient permissions")
)
