package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/thenoetrevino/tablero/internal/models"
)

const cardColumns = `c.id, c.project_id, c.column_id, c.story_id, c.number, c.title, c.description,
	c.priority, c.position, c.assignee_id, c.created_by, c.due_date, c.archived_at,
	c.archived_from_column_id, c.created_at, c.updated_at`

func scanCard(row rowScanner) (*models.Card, error) {
	card := &models.Card{}
	var storyID, assigneeID, archivedFrom sql.NullInt64
	var dueDate, archivedAt sql.NullTime
	if err := row.Scan(
		&card.ID, &card.ProjectID, &card.ColumnID, &storyID, &card.Number, &card.Title, &card.Description,
		&card.Priority, &card.Position, &assigneeID, &card.CreatedBy, &dueDate, &archivedAt,
		&archivedFrom, &card.CreatedAt, &card.UpdatedAt,
	); err != nil {
		return nil, err
	}
	card.StoryID = nullInt64ToPtr(storyID)
	card.AssigneeID = nullInt64ToPtr(assigneeID)
	card.ArchivedFromColumnID = nullInt64ToPtr(archivedFrom)
	card.DueDate = nullTimeToPtr(dueDate)
	card.ArchivedAt = nullTimeToPtr(archivedAt)
	return card, nil
}

// CreateCardParams holds the columns of a new card row
type CreateCardParams struct {
	ProjectID   int
	ColumnID    int
	StoryID     *int
	Number      int
	Title       string
	Description string
	Priority    models.Priority
	AssigneeID  *int
	CreatedBy   int
	DueDate     *time.Time
	Now         time.Time
}

// CreateCard appends a card at the tail of its column
func (q *Queries) CreateCard(ctx context.Context, arg CreateCardParams) (*models.Card, error) {
	position, err := q.nextPosition(ctx, arg.ColumnID)
	if err != nil {
		return nil, err
	}

	id, err := insertID(ctx, q.db,
		`INSERT INTO cards (project_id, column_id, story_id, number, title, description, priority,
			position, assignee_id, created_by, due_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.ProjectID, arg.ColumnID, intArg(arg.StoryID), arg.Number, arg.Title, arg.Description,
		string(arg.Priority), position, intArg(arg.AssigneeID), arg.CreatedBy, timeArg(arg.DueDate),
		arg.Now.UTC(), arg.Now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert card '%s': %w", arg.Title, err)
	}
	return q.GetCardByID(ctx, id)
}

// GetCardByID retrieves a card by id
func (q *Queries) GetCardByID(ctx context.Context, id int) (*models.Card, error) {
	card, err := scanCard(q.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards c WHERE c.id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return card, nil
}

// ListCards returns the archived or the active cards of a project
func (q *Queries) ListCards(ctx context.Context, projectID int, archived bool) ([]*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards c WHERE c.project_id = ? AND c.archived_at IS NULL
		ORDER BY c.column_id, c.position`
	if archived {
		query = `SELECT ` + cardColumns + ` FROM cards c WHERE c.project_id = ? AND c.archived_at IS NOT NULL
		ORDER BY c.archived_at DESC, c.id DESC`
	}

	rows, err := q.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards of project %d: %w", projectID, err)
	}
	defer closeRows(rows)

	cards := make([]*models.Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// ListBoardCards returns the active cards of a project grouped by column id,
// each group ordered by position. Labels are filled in.
func (q *Queries) ListBoardCards(ctx context.Context, projectID int) (map[int][]*models.CardSummary, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT c.id, c.number, c.title, c.priority, c.column_id, c.position,
		        c.assignee_id, COALESCE(u.name, ''), c.story_id, c.due_date
		 FROM cards c
		 LEFT JOIN users u ON u.id = c.assignee_id
		 WHERE c.project_id = ? AND c.archived_at IS NULL
		 ORDER BY c.column_id, c.position, c.id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query board cards: %w", err)
	}
	defer closeRows(rows)

	byColumn := make(map[int][]*models.CardSummary)
	var ids []int
	index := make(map[int]*models.CardSummary)
	for rows.Next() {
		s := &models.CardSummary{Labels: []*models.Label{}}
		var assigneeID, storyID sql.NullInt64
		var dueDate sql.NullTime
		if err := rows.Scan(&s.ID, &s.Number, &s.Title, &s.Priority, &s.ColumnID, &s.Position,
			&assigneeID, &s.AssigneeName, &storyID, &dueDate); err != nil {
			return nil, fmt.Errorf("failed to scan board card: %w", err)
		}
		s.AssigneeID = nullInt64ToPtr(assigneeID)
		s.StoryID = nullInt64ToPtr(storyID)
		s.DueDate = nullTimeToPtr(dueDate)
		byColumn[s.ColumnID] = append(byColumn[s.ColumnID], s)
		index[s.ID] = s
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	labels, err := q.LabelsForCards(ctx, ids)
	if err != nil {
		return nil, err
	}
	for cardID, ls := range labels {
		index[cardID].Labels = ls
	}
	return byColumn, nil
}

// UpdateCard writes the mutable fields of card
func (q *Queries) UpdateCard(ctx context.Context, card *models.Card, now time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE cards SET title = ?, description = ?, priority = ?, assignee_id = ?, story_id = ?,
			due_date = ?, updated_at = ?
		 WHERE id = ?`,
		card.Title, card.Description, string(card.Priority), intArg(card.AssigneeID), intArg(card.StoryID),
		timeArg(card.DueDate), now.UTC(), card.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update card %d: %w", card.ID, err)
	}
	return expectAffected(res)
}

// DeleteCard removes a card and closes the gap it leaves
func (q *Queries) DeleteCard(ctx context.Context, id int) error {
	card, err := q.GetCardByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete card %d: %w", id, err)
	}
	return q.CompactPositions(ctx, card.ColumnID)
}

// nextPosition returns the tail position of a column
func (q *Queries) nextPosition(ctx context.Context, columnID int) (int, error) {
	var next int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM cards WHERE column_id = ?`, columnID,
	).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to find tail of column %d: %w", columnID, err)
	}
	return next, nil
}

// CompactPositions renumbers a column's cards 0..n-1 keeping their order
func (q *Queries) CompactPositions(ctx context.Context, columnID int) error {
	ids, err := q.orderedCardIDs(ctx, columnID)
	if err != nil {
		return err
	}
	for i, id := range ids {
		if _, err := q.db.ExecContext(ctx,
			`UPDATE cards SET position = ? WHERE id = ? AND position != ?`, i, id, i,
		); err != nil {
			return fmt.Errorf("failed to compact column %d: %w", columnID, err)
		}
	}
	return nil
}

// orderedCardIDs lists a column's card ids by position
func (q *Queries) orderedCardIDs(ctx context.Context, columnID int) ([]int, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id FROM cards WHERE column_id = ? ORDER BY position, id`, columnID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards of column %d: %w", columnID, err)
	}
	defer closeRows(rows)

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MoveCard places a card at position in columnID, clamping the position to
// the column bounds. Both columns are left compacted. Must run inside a
// transaction.
func (q *Queries) MoveCard(ctx context.Context, cardID, columnID, position int, now time.Time) error {
	card, err := q.GetCardByID(ctx, cardID)
	if err != nil {
		return err
	}

	// Close the gap in the source column
	if _, err := q.db.ExecContext(ctx,
		`UPDATE cards SET position = position - 1 WHERE column_id = ? AND id != ? AND position > ?`,
		card.ColumnID, cardID, card.Position,
	); err != nil {
		return fmt.Errorf("failed to detach card %d: %w", cardID, err)
	}

	var count int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE column_id = ? AND id != ?`, columnID, cardID,
	).Scan(&count); err != nil {
		return fmt.Errorf("failed to count cards in column %d: %w", columnID, err)
	}
	position = max(0, min(position, count))

	if _, err := q.db.ExecContext(ctx,
		`UPDATE cards SET position = position + 1 WHERE column_id = ? AND id != ? AND position >= ?`,
		columnID, cardID, position,
	); err != nil {
		return fmt.Errorf("failed to open slot in column %d: %w", columnID, err)
	}

	if _, err := q.db.ExecContext(ctx,
		`UPDATE cards SET column_id = ?, position = ?, updated_at = ? WHERE id = ?`,
		columnID, position, now.UTC(), cardID,
	); err != nil {
		return fmt.Errorf("failed to move card %d: %w", cardID, err)
	}

	if card.ColumnID != columnID {
		if err := q.CompactPositions(ctx, card.ColumnID); err != nil {
			return err
		}
	}
	return q.CompactPositions(ctx, columnID)
}

// ArchiveCard moves a card to the tail of the archive column, remembering
// where it came from. Must run inside a transaction.
func (q *Queries) ArchiveCard(ctx context.Context, cardID, archiveColumnID int, now time.Time) error {
	card, err := q.GetCardByID(ctx, cardID)
	if err != nil {
		return err
	}
	position, err := q.nextPosition(ctx, archiveColumnID)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx,
		`UPDATE cards SET archived_from_column_id = column_id, column_id = ?, position = ?,
			archived_at = ?, updated_at = ?
		 WHERE id = ?`,
		archiveColumnID, position, now.UTC(), now.UTC(), cardID,
	); err != nil {
		return fmt.Errorf("failed to archive card %d: %w", cardID, err)
	}
	if err := q.CompactPositions(ctx, card.ColumnID); err != nil {
		return err
	}
	return q.CompactPositions(ctx, archiveColumnID)
}

// RestoreCard moves an archived card to the tail of columnID. Must run inside
// a transaction.
func (q *Queries) RestoreCard(ctx context.Context, cardID, columnID int, now time.Time) error {
	card, err := q.GetCardByID(ctx, cardID)
	if err != nil {
		return err
	}
	position, err := q.nextPosition(ctx, columnID)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx,
		`UPDATE cards SET column_id = ?, position = ?, archived_at = NULL,
			archived_from_column_id = NULL, updated_at = ?
		 WHERE id = ?`,
		columnID, position, now.UTC(), cardID,
	); err != nil {
		return fmt.Errorf("failed to restore card %d: %w", cardID, err)
	}
	return q.CompactPositions(ctx, card.ColumnID)
}

// CardCounts holds the related-row counts of a card detail view
type CardCounts struct {
	Comments       int
	Attachments    int
	TrackedSeconds int64
}

// GetCardCounts loads comment, attachment and tracked-time totals for a card
func (q *Queries) GetCardCounts(ctx context.Context, cardID int) (CardCounts, error) {
	var counts CardCounts
	err := q.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM comments WHERE card_id = ?),
			(SELECT COUNT(*) FROM attachments WHERE card_id = ?),
			(SELECT COALESCE(SUM(duration_seconds), 0) FROM time_entries WHERE card_id = ?)`,
		cardID, cardID, cardID,
	).Scan(&counts.Comments, &counts.Attachments, &counts.TrackedSeconds)
	if err != nil {
		return counts, fmt.Errorf("failed to count card %d relations: %w", cardID, err)
	}
	return counts, nil
}

// UnassignUser clears userID as assignee on every card of a project
func (q *Queries) UnassignUser(ctx context.Context, projectID, userID int, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE cards SET assignee_id = NULL, updated_at = ? WHERE project_id = ? AND assignee_id = ?`,
		now.UTC(), projectID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to unassign user %d: %w", userID, err)
	}
	return res.RowsAffected()
}
