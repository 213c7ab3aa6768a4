package database

import (
	"context"
	"fmt"
	"time"

	"github.com/thenoetrevino/tablero/internal/models"
)

// ============================================================================
// Active timers
// ============================================================================

const timerColumns = `user_id, card_id, project_id, note, started_at`

func scanTimer(row rowScanner) (*models.ActiveTimer, error) {
	t := &models.ActiveTimer{}
	if err := row.Scan(&t.UserID, &t.CardID, &t.ProjectID, &t.Note, &t.StartedAt); err != nil {
		return nil, err
	}
	return t, nil
}

// GetActiveTimer returns the user's running timer or ErrNotFound
func (q *Queries) GetActiveTimer(ctx context.Context, userID int) (*models.ActiveTimer, error) {
	t, err := scanTimer(q.db.QueryRowContext(ctx,
		`SELECT `+timerColumns+` FROM active_timers WHERE user_id = ?`, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// InsertActiveTimer starts a timer. A second timer for the same user fails
// with a unique violation.
func (q *Queries) InsertActiveTimer(ctx context.Context, t *models.ActiveTimer) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO active_timers (user_id, card_id, project_id, note, started_at) VALUES (?, ?, ?, ?, ?)`,
		t.UserID, t.CardID, t.ProjectID, t.Note, t.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to start timer for user %d: %w", t.UserID, err)
	}
	return nil
}

// DeleteActiveTimer stops the user's timer without recording it
func (q *Queries) DeleteActiveTimer(ctx context.Context, userID int) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM active_timers WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete timer of user %d: %w", userID, err)
	}
	return expectAffected(res)
}

// ListActiveTimersForCard returns every timer currently running on a card
func (q *Queries) ListActiveTimersForCard(ctx context.Context, cardID int) ([]*models.ActiveTimer, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+timerColumns+` FROM active_timers WHERE card_id = ? ORDER BY user_id`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query timers of card %d: %w", cardID, err)
	}
	defer closeRows(rows)

	timers := make([]*models.ActiveTimer, 0)
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan timer: %w", err)
		}
		timers = append(timers, t)
	}
	return timers, rows.Err()
}

// ============================================================================
// Time entries
// ============================================================================

const entryColumns = `id, user_id, card_id, project_id, started_at, ended_at, duration_seconds, note, source, created_at`

func scanEntry(row rowScanner) (*models.TimeEntry, error) {
	e := &models.TimeEntry{}
	if err := row.Scan(&e.ID, &e.UserID, &e.CardID, &e.ProjectID, &e.StartedAt, &e.EndedAt,
		&e.DurationSeconds, &e.Note, &e.Source, &e.CreatedAt); err != nil {
		return nil, err
	}
	return e, nil
}

// CreateTimeEntry records a closed interval of work
func (q *Queries) CreateTimeEntry(ctx context.Context, e *models.TimeEntry) (*models.TimeEntry, error) {
	id, err := insertID(ctx, q.db,
		`INSERT INTO time_entries (user_id, card_id, project_id, started_at, ended_at, duration_seconds, note, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.CardID, e.ProjectID, e.StartedAt.UTC(), e.EndedAt.UTC(), e.DurationSeconds,
		e.Note, string(e.Source), e.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert time entry: %w", err)
	}
	return q.GetTimeEntryByID(ctx, id)
}

// GetTimeEntryByID retrieves a time entry by id
func (q *Queries) GetTimeEntryByID(ctx context.Context, id int) (*models.TimeEntry, error) {
	e, err := scanEntry(q.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// ListTimeEntriesForCard returns a card's entries newest first
func (q *Queries) ListTimeEntriesForCard(ctx context.Context, cardID int) ([]*models.TimeEntry, error) {
	return q.listEntries(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE card_id = ? ORDER BY started_at DESC, id DESC`,
		cardID)
}

// ListTimeEntriesInWindow returns a project's entries overlapping [from, to)
func (q *Queries) ListTimeEntriesInWindow(ctx context.Context, projectID int, from, to time.Time) ([]*models.TimeEntry, error) {
	return q.listEntries(ctx,
		`SELECT `+entryColumns+` FROM time_entries
		 WHERE project_id = ? AND started_at < ? AND ended_at > ?
		 ORDER BY started_at, id`,
		projectID, to.UTC(), from.UTC())
}

func (q *Queries) listEntries(ctx context.Context, query string, args ...any) ([]*models.TimeEntry, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}
	defer closeRows(rows)

	entries := make([]*models.TimeEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteTimeEntry removes a time entry
func (q *Queries) DeleteTimeEntry(ctx context.Context, id int) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete time entry %d: %w", id, err)
	}
	return expectAffected(res)
}

// CardUserTotals sums a card's entries per user, largest first
func (q *Queries) CardUserTotals(ctx context.Context, cardID int) ([]*models.UserTotal, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT e.user_id, u.name, SUM(e.duration_seconds)
		 FROM time_entries e
		 JOIN users u ON u.id = e.user_id
		 WHERE e.card_id = ?
		 GROUP BY e.user_id, u.name
		 ORDER BY SUM(e.duration_seconds) DESC, e.user_id`,
		cardID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sum time of card %d: %w", cardID, err)
	}
	defer closeRows(rows)

	totals := make([]*models.UserTotal, 0)
	for rows.Next() {
		t := &models.UserTotal{}
		if err := rows.Scan(&t.UserID, &t.UserName, &t.TotalSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan user total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
