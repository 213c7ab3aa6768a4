package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/thenoetrevino/tablero/internal/models"
)

const notificationColumns = `id, user_id, project_id, kind, title, body, link, dedupe_key, read_at, created_at`

func scanNotification(row rowScanner) (*models.Notification, error) {
	n := &models.Notification{}
	var projectID sql.NullInt64
	var dedupeKey sql.NullString
	var readAt sql.NullTime
	if err := row.Scan(&n.ID, &n.UserID, &projectID, &n.Kind, &n.Title, &n.Body, &n.Link,
		&dedupeKey, &readAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.ProjectID = nullInt64ToPtr(projectID)
	n.DedupeKey = NullStringToString(dedupeKey)
	n.ReadAt = nullTimeToPtr(readAt)
	return n, nil
}

// CreateNotification inserts a notification. A repeated (user, dedupe key)
// pair fails with a unique violation.
func (q *Queries) CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	id, err := insertID(ctx, q.db,
		`INSERT INTO notifications (user_id, project_id, kind, title, body, link, dedupe_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, intArg(n.ProjectID), string(n.Kind), n.Title, n.Body, n.Link,
		stringArg(n.DedupeKey), n.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert notification for user %d: %w", n.UserID, err)
	}
	return q.GetNotificationByID(ctx, id)
}

// GetNotificationByID retrieves a notification by id
func (q *Queries) GetNotificationByID(ctx context.Context, id int) (*models.Notification, error) {
	n, err := scanNotification(q.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return n, nil
}

// GetNotificationByDedupeKey retrieves the notification a user already has
// for a dedupe key
func (q *Queries) GetNotificationByDedupeKey(ctx context.Context, userID int, key string) (*models.Notification, error) {
	n, err := scanNotification(q.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE user_id = ? AND dedupe_key = ?`,
		userID, key))
	if err != nil {
		return nil, notFound(err)
	}
	return n, nil
}

// ListNotifications returns a page of a user's notifications newest first
func (q *Queries) ListNotifications(ctx context.Context, userID int, unreadOnly bool, limit, offset int) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := q.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications of user %d: %w", userID, err)
	}
	defer closeRows(rows)

	notifications := make([]*models.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// CountUnreadNotifications returns how many unread notifications a user has
func (q *Queries) CountUnreadNotifications(ctx context.Context, userID int) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read_at IS NULL`, userID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead marks one of the user's notifications read. Marking
// an already read notification is not an error.
func (q *Queries) MarkNotificationRead(ctx context.Context, userID, id int, now time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ? AND user_id = ?`,
		now.UTC(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification %d read: %w", id, err)
	}
	return expectAffected(res)
}

// MarkAllNotificationsRead marks every unread notification of a user read
func (q *Queries) MarkAllNotificationsRead(ctx context.Context, userID int, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = ? WHERE user_id = ? AND read_at IS NULL`,
		now.UTC(), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.RowsAffected()
}
