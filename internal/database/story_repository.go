package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/thenoetrevino/tablero/internal/models"
)

const storyColumns = `id, project_id, parent_id, type, title, description, status, points, created_by, created_at, updated_at`

func scanStory(row rowScanner) (*models.Story, error) {
	s := &models.Story{}
	var parentID, points sql.NullInt64
	if err := row.Scan(&s.ID, &s.ProjectID, &parentID, &s.Type, &s.Title, &s.Description,
		&s.Status, &points, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.ParentID = nullInt64ToPtr(parentID)
	s.Points = nullInt64ToPtr(points)
	return s, nil
}

// CreateStory inserts a story
func (q *Queries) CreateStory(ctx context.Context, s *models.Story, now time.Time) (*models.Story, error) {
	id, err := insertID(ctx, q.db,
		`INSERT INTO stories (project_id, parent_id, type, title, description, status, points, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ProjectID, intArg(s.ParentID), string(s.Type), s.Title, s.Description, string(s.Status),
		intArg(s.Points), s.CreatedBy, now.UTC(), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert story '%s': %w", s.Title, err)
	}
	return q.GetStoryByID(ctx, id)
}

// GetStoryByID retrieves a story by id
func (q *Queries) GetStoryByID(ctx context.Context, id int) (*models.Story, error) {
	s, err := scanStory(q.db.QueryRowContext(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// ListStories returns every story of a project ordered by id
func (q *Queries) ListStories(ctx context.Context, projectID int) ([]*models.Story, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stories of project %d: %w", projectID, err)
	}
	defer closeRows(rows)

	stories := make([]*models.Story, 0)
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, s)
	}
	return stories, rows.Err()
}

// ListChildStories returns the direct children of a story
func (q *Queries) ListChildStories(ctx context.Context, parentID int) ([]*models.Story, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE parent_id = ? ORDER BY id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query children of story %d: %w", parentID, err)
	}
	defer closeRows(rows)

	stories := make([]*models.Story, 0)
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, s)
	}
	return stories, rows.Err()
}

// UpdateStory writes the mutable fields of a story
func (q *Queries) UpdateStory(ctx context.Context, s *models.Story, now time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE stories SET parent_id = ?, type = ?, title = ?, description = ?, status = ?, points = ?, updated_at = ?
		 WHERE id = ?`,
		intArg(s.ParentID), string(s.Type), s.Title, s.Description, string(s.Status), intArg(s.Points),
		now.UTC(), s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update story %d: %w", s.ID, err)
	}
	return expectAffected(res)
}

// DeleteStory removes a story. Its children move up to its parent and its
// cards are unlinked. Must run inside a transaction.
func (q *Queries) DeleteStory(ctx context.Context, id int) error {
	s, err := q.GetStoryByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx,
		`UPDATE stories SET parent_id = ? WHERE parent_id = ?`, intArg(s.ParentID), id,
	); err != nil {
		return fmt.Errorf("failed to reparent children of story %d: %w", id, err)
	}
	if _, err := q.db.ExecContext(ctx, `UPDATE cards SET story_id = NULL WHERE story_id = ?`, id); err != nil {
		return fmt.Errorf("failed to unlink cards of story %d: %w", id, err)
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete story %d: %w", id, err)
	}
	return nil
}

// StoryCardStats is the number of active cards linked directly to a story
// and how many of them sit in the completed column.
type StoryCardStats struct {
	Total     int
	Completed int
}

// ListStoryCardStats returns card counts per story id for a project
func (q *Queries) ListStoryCardStats(ctx context.Context, projectID int) (map[int]StoryCardStats, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT c.story_id, COUNT(*), COALESCE(SUM(CASE WHEN col.holds_completed = 1 THEN 1 ELSE 0 END), 0)
		 FROM cards c
		 JOIN columns col ON col.id = c.column_id
		 WHERE c.project_id = ? AND c.story_id IS NOT NULL AND c.archived_at IS NULL
		 GROUP BY c.story_id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query story card stats: %w", err)
	}
	defer closeRows(rows)

	stats := make(map[int]StoryCardStats)
	for rows.Next() {
		var storyID int
		var st StoryCardStats
		if err := rows.Scan(&storyID, &st.Total, &st.Completed); err != nil {
			return nil, fmt.Errorf("failed to scan story card stats: %w", err)
		}
		stats[storyID] = st
	}
	return stats, rows.Err()
}
