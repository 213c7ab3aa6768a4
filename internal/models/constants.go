package models

// ============================================================================
// ROLE CONSTANTS
// ============================================================================

// Role is a member's permission level inside a project
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// rank orders roles so that a higher rank includes the lower ones.
func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r.rank() > 0
}

// AtLeast reports whether r grants everything min grants.
func (r Role) AtLeast(min Role) bool {
	return r.rank() >= min.rank() && r.Valid()
}

// ============================================================================
// COLUMN CONSTANTS
// ============================================================================

// ColumnKind distinguishes board columns from the synthetic archive column
type ColumnKind string

const (
	ColumnKindStandard ColumnKind = "standard"
	ColumnKindArchive  ColumnKind = "archive"
)

// ArchiveColumnName is the display name of the archive column
const ArchiveColumnName = "Archive"

// DefaultColumns are created with every new project. The last one holds
// completed cards.
var DefaultColumns = []string{"To Do", "In Progress", "Done"}

// ============================================================================
// PRIORITY CONSTANTS
// ============================================================================

// Priority of a card
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ============================================================================
// STORY CONSTANTS
// ============================================================================

// StoryType is the kind of a story in the hierarchy
type StoryType string

const (
	StoryTypeEpic  StoryType = "epic"
	StoryTypeStory StoryType = "story"
	StoryTypeTask  StoryType = "task"
	StoryTypeBug   StoryType = "bug"
)

// Rank orders story types. A story may only be nested under a parent of
// equal or higher rank.
func (t StoryType) Rank() int {
	switch t {
	case StoryTypeEpic:
		return 3
	case StoryTypeStory:
		return 2
	case StoryTypeTask, StoryTypeBug:
		return 1
	default:
		return 0
	}
}

// Valid reports whether t is a known story type
func (t StoryType) Valid() bool {
	return t.Rank() > 0
}

// StoryStatus is the workflow state of a story
type StoryStatus string

const (
	StoryStatusOpen       StoryStatus = "open"
	StoryStatusInProgress StoryStatus = "in_progress"
	StoryStatusDone       StoryStatus = "done"
)

// Valid reports whether s is a known story status
func (s StoryStatus) Valid() bool {
	switch s {
	case StoryStatusOpen, StoryStatusInProgress, StoryStatusDone:
		return true
	}
	return false
}

// ============================================================================
// INVITATION CONSTANTS
// ============================================================================

// InvitationStatus is derived from an invitation's timestamps
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
	InvitationExpired  InvitationStatus = "expired"
)

// ============================================================================
// TIME TRACKING CONSTANTS
// ============================================================================

// EntrySource records how a time entry was produced
type EntrySource string

const (
	EntrySourceTimer  EntrySource = "timer"
	EntrySourceManual EntrySource = "manual"
)

// ============================================================================
// NOTIFICATION CONSTANTS
// ============================================================================

// NotificationKind identifies what triggered a notification
type NotificationKind string

const (
	NotificationCardAssigned       NotificationKind = "card_assigned"
	NotificationCardCommented      NotificationKind = "card_commented"
	NotificationInvitationAccepted NotificationKind = "invitation_accepted"
	NotificationMemberRemoved      NotificationKind = "member_removed"
)
