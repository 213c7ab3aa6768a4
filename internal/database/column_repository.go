package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thenoetrevino/tablero/internal/models"
)

const columnColumns = `id, project_id, name, kind, prev_id, next_id, holds_completed, created_at`

func scanColumn(row rowScanner) (*models.Column, error) {
	col := &models.Column{}
	var prevID, nextID sql.NullInt64
	if err := row.Scan(&col.ID, &col.ProjectID, &col.Name, &col.Kind, &prevID, &nextID, &col.HoldsCompleted, &col.CreatedAt); err != nil {
		return nil, err
	}
	col.PrevID = nullInt64ToPtr(prevID)
	col.NextID = nullInt64ToPtr(nextID)
	return col, nil
}

// CreateColumn creates a new standard column in a project.
// If afterColumnID is nil, the column is appended to the end of the project's list.
// Otherwise, it's inserted after the specified column.
func (q *Queries) CreateColumn(ctx context.Context, projectID int, name string, afterColumnID *int, now time.Time) (*models.Column, error) {
	prevID, nextID, err := q.neighboursFor(ctx, projectID, afterColumnID)
	if err != nil {
		return nil, err
	}

	id, err := insertID(ctx, q.db,
		`INSERT INTO columns (project_id, name, kind, prev_id, next_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		projectID, name, string(models.ColumnKindStandard), intArg(prevID), intArg(nextID), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert column '%s': %w", name, err)
	}

	if err := q.link(ctx, id, prevID, nextID); err != nil {
		return nil, err
	}

	return q.GetColumnByID(ctx, id)
}

// neighboursFor resolves where a column placed after afterColumnID would sit.
// A nil afterColumnID means "after the current tail".
func (q *Queries) neighboursFor(ctx context.Context, projectID int, afterColumnID *int) (prevID, nextID *int, err error) {
	if afterColumnID == nil {
		tail, err := q.tailColumnID(ctx, projectID)
		if err != nil {
			return nil, nil, err
		}
		return tail, nil, nil
	}

	var currentNextID sql.NullInt64
	err = q.db.QueryRowContext(ctx,
		`SELECT next_id FROM columns WHERE id = ? AND project_id = ? AND kind = ?`,
		*afterColumnID, projectID, string(models.ColumnKindStandard),
	).Scan(&currentNextID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find column %d: %w", *afterColumnID, notFound(err))
	}

	after := *afterColumnID
	return &after, nullInt64ToPtr(currentNextID), nil
}

// tailColumnID returns the last standard column or nil for an empty board
func (q *Queries) tailColumnID(ctx context.Context, projectID int) (*int, error) {
	var tailID sql.NullInt64
	err := q.db.QueryRowContext(ctx,
		`SELECT id FROM columns WHERE project_id = ? AND kind = ? AND next_id IS NULL LIMIT 1`,
		projectID, string(models.ColumnKindStandard),
	).Scan(&tailID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to find tail column: %w", err)
	}
	return nullInt64ToPtr(tailID), nil
}

// link points the neighbours of column id back at it
func (q *Queries) link(ctx context.Context, id int, prevID, nextID *int) error {
	if prevID != nil {
		if _, err := q.db.ExecContext(ctx, `UPDATE columns SET next_id = ? WHERE id = ?`, id, *prevID); err != nil {
			return fmt.Errorf("failed to link column %d after %d: %w", id, *prevID, err)
		}
	}
	if nextID != nil {
		if _, err := q.db.ExecContext(ctx, `UPDATE columns SET prev_id = ? WHERE id = ?`, id, *nextID); err != nil {
			return fmt.Errorf("failed to link column %d before %d: %w", id, *nextID, err)
		}
	}
	return nil
}

// unlink removes a column from its project's list, joining its neighbours
func (q *Queries) unlink(ctx context.Context, col *models.Column) error {
	if col.PrevID != nil {
		if _, err := q.db.ExecContext(ctx, `UPDATE columns SET next_id = ? WHERE id = ?`, intArg(col.NextID), *col.PrevID); err != nil {
			return fmt.Errorf("failed to unlink column %d: %w", col.ID, err)
		}
	}
	if col.NextID != nil {
		if _, err := q.db.ExecContext(ctx, `UPDATE columns SET prev_id = ? WHERE id = ?`, intArg(col.PrevID), *col.NextID); err != nil {
			return fmt.Errorf("failed to unlink column %d: %w", col.ID, err)
		}
	}
	if _, err := q.db.ExecContext(ctx, `UPDATE columns SET prev_id = NULL, next_id = NULL WHERE id = ?`, col.ID); err != nil {
		return fmt.Errorf("failed to detach column %d: %w", col.ID, err)
	}
	return nil
}

// MoveColumn relinks a column after afterColumnID, or at the head when
// afterColumnID is nil. Must run inside a transaction.
func (q *Queries) MoveColumn(ctx context.Context, columnID int, afterColumnID *int) error {
	col, err := q.GetColumnByID(ctx, columnID)
	if err != nil {
		return err
	}
	if err := q.unlink(ctx, col); err != nil {
		return err
	}

	var prevID, nextID *int
	if afterColumnID == nil {
		var headID sql.NullInt64
		err := q.db.QueryRowContext(ctx,
			`SELECT id FROM columns WHERE project_id = ? AND kind = ? AND prev_id IS NULL AND id != ? LIMIT 1`,
			col.ProjectID, string(models.ColumnKindStandard), columnID,
		).Scan(&headID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to find head column: %w", err)
		}
		nextID = nullInt64ToPtr(headID)
	} else {
		prevID, nextID, err = q.neighboursFor(ctx, col.ProjectID, afterColumnID)
		if err != nil {
			return err
		}
	}

	if _, err := q.db.ExecContext(ctx,
		`UPDATE columns SET prev_id = ?, next_id = ? WHERE id = ?`,
		intArg(prevID), intArg(nextID), columnID,
	); err != nil {
		return fmt.Errorf("failed to move column %d: %w", columnID, err)
	}
	return q.link(ctx, columnID, prevID, nextID)
}

// ListColumns retrieves the standard columns of a project by traversing the linked list
// Returns columns in order from head to tail
func (q *Queries) ListColumns(ctx context.Context, projectID int) ([]*models.Column, error) {
	// Fetch all columns in a single query and walk the list in memory
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+columnColumns+` FROM columns WHERE project_id = ? AND kind = ?`,
		projectID, string(models.ColumnKindStandard),
	)
	if err != nil {
		return nil, fmt.Errorf("querying columns for project: %w", err)
	}
	defer closeRows(rows)

	columnMap := make(map[int]*models.Column)
	var headID *int

	for rows.Next() {
		col, err := scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		if col.PrevID == nil {
			headID = &col.ID
		}
		columnMap[col.ID] = col
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating column rows: %w", err)
	}

	if len(columnMap) == 0 {
		return []*models.Column{}, nil
	}

	// If no head found, database is in inconsistent state
	if headID == nil {
		return nil, fmt.Errorf("no head column found for project %d (linked list broken)", projectID)
	}

	columns := make([]*models.Column, 0, len(columnMap))
	currentID := *headID
	for {
		col, exists := columnMap[currentID]
		if !exists {
			return nil, fmt.Errorf("column %d not found in map (linked list broken)", currentID)
		}
		columns = append(columns, col)

		if col.NextID == nil {
			break
		}
		if len(columns) == len(columnMap) {
			return nil, fmt.Errorf("cycle detected in columns of project %d (linked list broken)", projectID)
		}
		currentID = *col.NextID
	}

	return columns, nil
}

// GetColumnByID retrieves a column by its ID
func (q *Queries) GetColumnByID(ctx context.Context, columnID int) (*models.Column, error) {
	col, err := scanColumn(q.db.QueryRowContext(ctx,
		`SELECT `+columnColumns+` FROM columns WHERE id = ?`, columnID))
	if err != nil {
		return nil, notFound(err)
	}
	return col, nil
}

// FirstColumn returns the head of the project's board
func (q *Queries) FirstColumn(ctx context.Context, projectID int) (*models.Column, error) {
	col, err := scanColumn(q.db.QueryRowContext(ctx,
		`SELECT `+columnColumns+` FROM columns
		 WHERE project_id = ? AND kind = ? AND prev_id IS NULL
		 ORDER BY id LIMIT 1`,
		projectID, string(models.ColumnKindStandard),
	))
	if err != nil {
		return nil, notFound(err)
	}
	return col, nil
}

// RenameColumn updates the name of an existing column
func (q *Queries) RenameColumn(ctx context.Context, columnID int, name string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE columns SET name = ? WHERE id = ?`, name, columnID)
	if err != nil {
		return fmt.Errorf("failed to rename column %d: %w", columnID, err)
	}
	return expectAffected(res)
}

// SetCompletedColumn marks columnID as the project's completed column and
// clears the flag everywhere else.
func (q *Queries) SetCompletedColumn(ctx context.Context, projectID, columnID int) error {
	if _, err := q.db.ExecContext(ctx,
		`UPDATE columns SET holds_completed = 0 WHERE project_id = ? AND holds_completed = 1`,
		projectID,
	); err != nil {
		return fmt.Errorf("failed to clear completed column: %w", err)
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE columns SET holds_completed = 1 WHERE id = ? AND project_id = ?`,
		columnID, projectID,
	)
	if err != nil {
		return fmt.Errorf("failed to set completed column %d: %w", columnID, err)
	}
	return expectAffected(res)
}

// CompletedColumnID returns the project's completed column or nil
func (q *Queries) CompletedColumnID(ctx context.Context, projectID int) (*int, error) {
	var id sql.NullInt64
	err := q.db.QueryRowContext(ctx,
		`SELECT id FROM columns WHERE project_id = ? AND holds_completed = 1`, projectID,
	).Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to find completed column: %w", err)
	}
	return nullInt64ToPtr(id), nil
}

// CountCardsInColumn returns the number of cards in a column
func (q *Queries) CountCardsInColumn(ctx context.Context, columnID int) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE column_id = ?`, columnID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cards in column %d: %w", columnID, err)
	}
	return n, nil
}

// DeleteColumn unlinks and removes a column. Must run inside a transaction.
func (q *Queries) DeleteColumn(ctx context.Context, columnID int) error {
	col, err := q.GetColumnByID(ctx, columnID)
	if err != nil {
		return err
	}
	if err := q.unlink(ctx, col); err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM columns WHERE id = ?`, columnID); err != nil {
		return fmt.Errorf("failed to delete column %d: %w", columnID, err)
	}
	return nil
}

// ============================================================================
// Archive column
// ============================================================================

// CreateArchiveColumn inserts the project's archive column. Once the unique
// index exists a second insert fails with a unique violation.
func (q *Queries) CreateArchiveColumn(ctx context.Context, projectID int, now time.Time) (*models.Column, error) {
	id, err := insertID(ctx, q.db,
		`INSERT INTO columns (project_id, name, kind, created_at) VALUES (?, ?, ?, ?)`,
		projectID, models.ArchiveColumnName, string(models.ColumnKindArchive), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert archive column: %w", err)
	}
	return q.GetColumnByID(ctx, id)
}

// ListArchiveColumns returns every archive column of a project, oldest first
func (q *Queries) ListArchiveColumns(ctx context.Context, projectID int) ([]*models.Column, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+columnColumns+` FROM columns WHERE project_id = ? AND kind = ? ORDER BY id`,
		projectID, string(models.ColumnKindArchive),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive columns: %w", err)
	}
	defer closeRows(rows)

	columns := make([]*models.Column, 0, 1)
	for rows.Next() {
		col, err := scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archive column: %w", err)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// ReconcileArchiveColumns collapses a project's archive columns into the
// oldest one. Cards of the duplicates are appended to the survivor's tail in
// column then position order, and the duplicates are deleted. Returns the
// survivor, or ErrNotFound when the project has no archive column. Must run
// inside a transaction.
func (q *Queries) ReconcileArchiveColumns(ctx context.Context, projectID int) (*models.Column, error) {
	archives, err := q.ListArchiveColumns(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(archives) == 0 {
		return nil, ErrNotFound
	}

	keeper := archives[0]
	for _, dup := range archives[1:] {
		next, err := q.nextPosition(ctx, keeper.ID)
		if err != nil {
			return nil, err
		}
		ids, err := q.orderedCardIDs(ctx, dup.ID)
		if err != nil {
			return nil, err
		}
		for i, cardID := range ids {
			if _, err := q.db.ExecContext(ctx,
				`UPDATE cards SET column_id = ?, position = ? WHERE id = ?`,
				keeper.ID, next+i, cardID,
			); err != nil {
				return nil, fmt.Errorf("failed to merge archive column %d into %d: %w", dup.ID, keeper.ID, err)
			}
		}
		if _, err := q.db.ExecContext(ctx, `DELETE FROM columns WHERE id = ?`, dup.ID); err != nil {
			return nil, fmt.Errorf("failed to delete duplicate archive column %d: %w", dup.ID, err)
		}
	}

	return keeper, nil
}

// ProjectsWithDuplicateArchiveColumns lists projects holding more than one
// archive column
func (q *Queries) ProjectsWithDuplicateArchiveColumns(ctx context.Context) ([]int, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT project_id FROM columns WHERE kind = ? GROUP BY project_id HAVING COUNT(*) > 1 ORDER BY project_id`,
		string(models.ColumnKindArchive),
	)
	if err != nil {
		return nil, err
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
