package models

import "time"

// Story is a hierarchical work item. Stories nest through ParentID and
// group cards through Card.StoryID.
type Story struct {
	ID          int         `json:"id"`
	ProjectID   int         `json:"project_id"`
	ParentID    *int        `json:"parent_id"`
	Type        StoryType   `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      StoryStatus `json:"status"`
	Points      *int        `json:"points"`
	CreatedBy   int         `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// StoryNode is a story in the project tree with its progress rolled up
// over the whole subtree.
type StoryNode struct {
	*Story
	Children       []*StoryNode `json:"children"`
	CardCount      int          `json:"card_count"`
	CompletedCards int          `json:"completed_cards"`
	Progress       float64      `json:"progress"` // 0..1, 0 when there are no cards
}
