package models

import "time"

// Project is the top-level container for columns, cards and stories.
type Project struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     int       `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectSummary is a Project as seen by one member, with their role and
// board counts for list views.
type ProjectSummary struct {
	Project
	Role        Role `json:"role"`
	CardCount   int  `json:"card_count"`
	MemberCount int  `json:"member_count"`
}

// Member is a user's membership in a project.
type Member struct {
	ProjectID int       `json:"project_id"`
	UserID    int       `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}
