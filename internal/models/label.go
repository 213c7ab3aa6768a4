package models

// Label represents a tag that can be applied to cards.
// Labels are project-specific, similar to GitHub labels.
type Label struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"` // Hex color code (e.g., "#7D56F4")
	ProjectID int    `json:"project_id"`
}
