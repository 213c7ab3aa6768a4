package models

import "time"

// Attachment is a file uploaded to a card. The bytes live in the blob
// store under ContentHash.
type Attachment struct {
	ID          int       `json:"id"`
	CardID      int       `json:"card_id"`
	ProjectID   int       `json:"project_id"`
	UploadedBy  int       `json:"uploaded_by"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}
