package models

import "time"

// Card is a unit of work on the board.
type Card struct {
	ID                   int        `json:"id"`
	ProjectID            int        `json:"project_id"`
	ColumnID             int        `json:"column_id"`
	StoryID              *int       `json:"story_id"`
	Number               int        `json:"number"` // Per-project ticket number
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Priority             Priority   `json:"priority"`
	Position             int        `json:"position"`
	AssigneeID           *int       `json:"assignee_id"`
	CreatedBy            int        `json:"created_by"`
	DueDate              *time.Time `json:"due_date"`
	ArchivedAt           *time.Time `json:"archived_at"`
	ArchivedFromColumnID *int       `json:"archived_from_column_id"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// IsArchived reports whether the card lives in the archive column.
func (c *Card) IsArchived() bool {
	return c.ArchivedAt != nil
}

// CardSummary is the board view of a card
type CardSummary struct {
	ID           int        `json:"id"`
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	Priority     Priority   `json:"priority"`
	ColumnID     int        `json:"column_id"`
	Position     int        `json:"position"`
	AssigneeID   *int       `json:"assignee_id"`
	AssigneeName string     `json:"assignee_name,omitempty"`
	StoryID      *int       `json:"story_id"`
	DueDate      *time.Time `json:"due_date"`
	Labels       []*Label   `json:"labels"`
}

// CardDetail is the full card view with its related counts.
type CardDetail struct {
	*Card
	Labels          []*Label `json:"labels"`
	CommentCount    int      `json:"comment_count"`
	AttachmentCount int      `json:"attachment_count"`
	TrackedSeconds  int64    `json:"tracked_seconds"`
	ColumnName      string   `json:"column_name"`
}
