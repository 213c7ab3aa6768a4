package database

import (
	"context"
	"fmt"
	"time"

	"github.com/thenoetrevino/tablero/internal/models"
)

const commentColumns = `cm.id, cm.card_id, cm.author_id, u.name, cm.body, cm.created_at, cm.updated_at`

func scanComment(row rowScanner) (*models.Comment, error) {
	c := &models.Comment{}
	if err := row.Scan(&c.ID, &c.CardID, &c.AuthorID, &c.AuthorName, &c.Body, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateComment adds a comment to a card
func (q *Queries) CreateComment(ctx context.Context, cardID, authorID int, body string, now time.Time) (*models.Comment, error) {
	id, err := insertID(ctx, q.db,
		`INSERT INTO comments (card_id, author_id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		cardID, authorID, body, now.UTC(), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment on card %d: %w", cardID, err)
	}
	return q.GetCommentByID(ctx, id)
}

// GetCommentByID retrieves a comment with its author's name
func (q *Queries) GetCommentByID(ctx context.Context, id int) (*models.Comment, error) {
	c, err := scanComment(q.db.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments cm JOIN users u ON u.id = cm.author_id WHERE cm.id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// ListComments returns a card's comments oldest first
func (q *Queries) ListComments(ctx context.Context, cardID int) ([]*models.Comment, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments cm JOIN users u ON u.id = cm.author_id
		 WHERE cm.card_id = ? ORDER BY cm.created_at, cm.id`,
		cardID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments of card %d: %w", cardID, err)
	}
	defer closeRows(rows)

	comments := make([]*models.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// UpdateComment replaces a comment body
func (q *Queries) UpdateComment(ctx context.Context, id int, body string, now time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE comments SET body = ?, updated_at = ? WHERE id = ?`, body, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update comment %d: %w", id, err)
	}
	return expectAffected(res)
}

// DeleteComment removes a comment
func (q *Queries) DeleteComment(ctx context.Context, id int) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment %d: %w", id, err)
	}
	return expectAffected(res)
}
