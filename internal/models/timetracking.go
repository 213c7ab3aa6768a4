package models

import "time"

// ActiveTimer is the single in-progress tracking session of a user.
type ActiveTimer struct {
	UserID    int       `json:"user_id"`
	CardID    int       `json:"card_id"`
	ProjectID int       `json:"project_id"`
	Note      string    `json:"note"`
	StartedAt time.Time `json:"started_at"`
}

// Elapsed returns how long the timer has been running at now.
func (t *ActiveTimer) Elapsed(now time.Time) time.Duration {
	if now.Before(t.StartedAt) {
		return 0
	}
	return now.Sub(t.StartedAt)
}

// TimeEntry is a closed interval of tracked work on a card.
type TimeEntry struct {
	ID              int         `json:"id"`
	UserID          int         `json:"user_id"`
	CardID          int         `json:"card_id"`
	ProjectID       int         `json:"project_id"`
	StartedAt       time.Time   `json:"started_at"`
	EndedAt         time.Time   `json:"ended_at"`
	DurationSeconds int64       `json:"duration_seconds"`
	Note            string      `json:"note"`
	Source          EntrySource `json:"source"`
	CreatedAt       time.Time   `json:"created_at"`
}

// UserTotal is tracked time of one user.
type UserTotal struct {
	UserID       int    `json:"user_id"`
	UserName     string `json:"user_name"`
	TotalSeconds int64  `json:"total_seconds"`
}

// CardTotal is tracked time on one card.
type CardTotal struct {
	CardID       int    `json:"card_id"`
	CardNumber   int    `json:"card_number"`
	CardTitle    string `json:"card_title"`
	TotalSeconds int64  `json:"total_seconds"`
}

// CardTimeSummary aggregates all tracked time on a card.
type CardTimeSummary struct {
	CardID         int          `json:"card_id"`
	TotalSeconds   int64        `json:"total_seconds"`
	RunningSeconds int64        `json:"running_seconds"`
	EntryCount     int          `json:"entry_count"`
	ByUser         []*UserTotal `json:"by_user"`
}

// ProjectTimeReport aggregates tracked time in a project over a window.
type ProjectTimeReport struct {
	ProjectID    int          `json:"project_id"`
	From         time.Time    `json:"from"`
	To           time.Time    `json:"to"`
	TotalSeconds int64        `json:"total_seconds"`
	ByCard       []*CardTotal `json:"by_card"`
	ByUser       []*UserTotal `json:"by_user"`
}
