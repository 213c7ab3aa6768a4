package models

import "time"

// Comment is a message left on a card
type Comment struct {
	ID         int       `json:"id"`
	CardID     int       `json:"card_id"`
	AuthorID   int       `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
