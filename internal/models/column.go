package models

import "time"

// Column is a kanban status lane. Standard columns form a doubly-linked
// list per project through PrevID and NextID. The archive column sits
// outside the list (both pointers nil) and is never shown on the board.
type Column struct {
	ID             int        `json:"id"`
	ProjectID      int        `json:"project_id"`
	Name           string     `json:"name"`
	Kind           ColumnKind `json:"kind"`
	PrevID         *int       `json:"prev_id"`
	NextID         *int       `json:"next_id"`
	HoldsCompleted bool       `json:"holds_completed"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsArchive reports whether the column is the project's archive column.
func (c *Column) IsArchive() bool {
	return c.Kind == ColumnKindArchive
}

// BoardColumn is a column with its cards, as rendered on the board.
type BoardColumn struct {
	*Column
	Cards []*CardSummary `json:"cards"`
}

// Board is the ordered set of standard columns of a project.
type Board struct {
	Project *Project       `json:"project"`
	Columns []*BoardColumn `json:"columns"`
}
