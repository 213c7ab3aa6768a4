package database

import (
	"context"
	"fmt"
	"time"

	"github.com/thenoetrevino/tablero/internal/models"
)

const userColumns = `id, email, name, password_hash, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser inserts a new account. Email uniqueness is enforced by the
// schema; callers check IsUniqueViolation.
func (q *Queries) CreateUser(ctx context.Context, email, name, passwordHash string, now time.Time) (*models.User, error) {
	id, err := insertID(ctx, q.db,
		`INSERT INTO users (email, name, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		email, name, passwordHash, now.UTC(), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return q.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by id
func (q *Queries) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	user, err := scanUser(q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by normalised email
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// ListUsers returns every account ordered by id
func (q *Queries) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer closeRows(rows)

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUser rewrites the mutable profile fields
func (q *Queries) UpdateUser(ctx context.Context, id int, name, passwordHash string, now time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET name = ?, password_hash = ?, updated_at = ? WHERE id = ?`,
		name, passwordHash, now.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", id, err)
	}
	return expectAffected(res)
}
