package database

import (
	"context"
	"fmt"

	"github.com/thenoetrevino/tablero/internal/models"
)

const attachmentColumns = `id, card_id, project_id, uploaded_by, filename, content_type, size_bytes, content_hash, created_at`

func scanAttachment(row rowScanner) (*models.Attachment, error) {
	a := &models.Attachment{}
	if err := row.Scan(&a.ID, &a.CardID, &a.ProjectID, &a.UploadedBy, &a.Filename, &a.ContentType,
		&a.SizeBytes, &a.ContentHash, &a.CreatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAttachment records an uploaded file
func (q *Queries) CreateAttachment(ctx context.Context, a *models.Attachment) (*models.Attachment, error) {
	id, err := insertID(ctx, q.db,
		`INSERT INTO attachments (card_id, project_id, uploaded_by, filename, content_type, size_bytes, content_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.CardID, a.ProjectID, a.UploadedBy, a.Filename, a.ContentType, a.SizeBytes, a.ContentHash,
		a.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert attachment '%s': %w", a.Filename, err)
	}
	return q.GetAttachmentByID(ctx, id)
}

// GetAttachmentByID retrieves an attachment by id
func (q *Queries) GetAttachmentByID(ctx context.Context, id int) (*models.Attachment, error) {
	a, err := scanAttachment(q.db.QueryRowContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// ListAttachments returns a card's attachments oldest first
func (q *Queries) ListAttachments(ctx context.Context, cardID int) ([]*models.Attachment, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE card_id = ? ORDER BY id`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments of card %d: %w", cardID, err)
	}
	defer closeRows(rows)

	attachments := make([]*models.Attachment, 0)
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

// DeleteAttachment removes an attachment row
func (q *Queries) DeleteAttachment(ctx context.Context, id int) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete attachment %d: %w", id, err)
	}
	return expectAffected(res)
}

// ListAttachmentHashes returns every referenced blob hash
func (q *Queries) ListAttachmentHashes(ctx context.Context) (map[string]struct{}, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT DISTINCT content_hash FROM attachments`)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachment hashes: %w", err)
	}
	defer closeRows(rows)

	hashes := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes[h] = struct{}{}
	}
	return hashes, rows.Err()
}
