package invitation

import "errors"

// Invitation-related errors
var (
	// Validation errors
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrInvalidRole      = errors.New("invalid role (must be member or admin)")
	ErrInvalidProjectID = errors.New("invalid project ID")
	ErrInvalidToken     = errors.New("invalid invitation token")

	// Business logic errors
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationExpired  = errors.New("invitation has expired")
	ErrInvitationUsed     = errors.New("invitation has already been accepted")
	ErrInvitationRevoked  = errors.New("invitation has been revoked")
	ErrAlreadyMember      = errors.New("user is already a member of this project")
	ErrEmailMismatch      = errors.New("invitation was sent to a different email address")
)
