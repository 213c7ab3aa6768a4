package models

import "time"

// Notification is one item in a user's inbox.
type Notification struct {
	ID        int              `json:"id"`
	UserID    int              `json:"user_id"`
	ProjectID *int             `json:"project_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Link      string           `json:"link"`
	DedupeKey string           `json:"-"`
	ReadAt    *time.Time       `json:"read_at"`
	CreatedAt time.Time        `json:"created_at"`
}
