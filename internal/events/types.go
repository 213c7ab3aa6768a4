package events

import "time"

// EventType indicates what kind of change occurred
type EventType string

const (
	EventProjectUpdated      EventType = "project.updated"
	EventProjectDeleted      EventType = "project.deleted"
	EventMembersChanged      EventType = "members.changed"
	EventColumnsChanged      EventType = "columns.changed"
	EventCardCreated         EventType = "card.created"
	EventCardUpdated         EventType = "card.updated"
	EventCardMoved           EventType = "card.moved"
	EventCardArchived        EventType = "card.archived"
	EventCardRestored        EventType = "card.restored"
	EventCardDeleted         EventType = "card.deleted"
	EventStoriesChanged      EventType = "stories.changed"
	EventLabelsChanged       EventType = "labels.changed"
	EventCommentsChanged     EventType = "comments.changed"
	EventAttachmentsChanged  EventType = "attachments.changed"
	EventTimerChanged        EventType = "timer.changed"
	EventNotificationCreated EventType = "notification.created"
	EventPing                EventType = "ping"
)

// Event represents a change notification.
//
// Events with a UserID are private to that user and only reach user
// streams. Events without one reach everyone subscribed to ProjectID.
type Event struct {
	Type       EventType `json:"type"`
	ProjectID  int       `json:"project_id,omitempty"`
	UserID     int       `json:"user_id,omitempty"`
	EntityID   int       `json:"entity_id,omitempty"` // Card, column, story... depending on Type
	Timestamp  time.Time `json:"timestamp"`
	SequenceID int64     `json:"sequence_id"` // Monotonically increasing sequence number for ordering
}

// Subscription selects which events a subscriber receives. Exactly one of
// ProjectID and UserID is set.
type Subscription struct {
	ProjectID int
	UserID    int
}

// matches reports whether the subscription should receive event
func (s Subscription) matches(event Event) bool {
	if event.Type == EventPing {
		return true
	}
	if event.UserID != 0 {
		return s.UserID == event.UserID
	}
	return s.ProjectID != 0 && s.ProjectID == event.ProjectID
}
