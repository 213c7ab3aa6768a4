package models

import "time"

// Invitation is a time-limited offer for an email address to join a
// project. Only a hash of the token is persisted.
type Invitation struct {
	ID         int        `json:"id"`
	ProjectID  int        `json:"project_id"`
	Email      string     `json:"email"`
	Role       Role       `json:"role"`
	TokenHash  string     `json:"-"`
	InvitedBy  int        `json:"invited_by"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at"`
	AcceptedBy *int       `json:"accepted_by"`
	RevokedAt  *time.Time `json:"revoked_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Status derives the lifecycle state of the invitation at the given time.
func (i *Invitation) Status(now time.Time) InvitationStatus {
	switch {
	case i.AcceptedAt != nil:
		return InvitationAccepted
	case i.RevokedAt != nil:
		return InvitationRevoked
	case !i.ExpiresAt.After(now):
		return InvitationExpired
	default:
		return InvitationPending
	}
}

// InvitationPreview is what an unauthenticated holder of a token may see.
type InvitationPreview struct {
	ProjectID   int              `json:"project_id"`
	ProjectName string           `json:"project_name"`
	Email       string           `json:"email"`
	Role        Role             `json:"role"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Status      InvitationStatus `json:"status"`
}
