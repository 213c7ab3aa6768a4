package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/thenoetrevino/tablero/internal/models"
)

const invitationColumns = `id, project_id, email, role, token_hash, invited_by, expires_at,
	accepted_at, accepted_by, revoked_at, created_at`

func scanInvitation(row rowScanner) (*models.Invitation, error) {
	inv := &models.Invitation{}
	var acceptedAt, revokedAt sql.NullTime
	var acceptedBy sql.NullInt64
	if err := row.Scan(&inv.ID, &inv.ProjectID, &inv.Email, &inv.Role, &inv.TokenHash, &inv.InvitedBy,
		&inv.ExpiresAt, &acceptedAt, &acceptedBy, &revokedAt, &inv.CreatedAt); err != nil {
		return nil, err
	}
	inv.AcceptedAt = nullTimeToPtr(acceptedAt)
	inv.AcceptedBy = nullInt64ToPtr(acceptedBy)
	inv.RevokedAt = nullTimeToPtr(revokedAt)
	return inv, nil
}

// CreateInvitation stores a new invitation
func (q *Queries) CreateInvitation(ctx context.Context, inv *models.Invitation) (*models.Invitation, error) {
	id, err := insertID(ctx, q.db,
		`INSERT INTO invitations (project_id, email, role, token_hash, invited_by, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ProjectID, inv.Email, string(inv.Role), inv.TokenHash, inv.InvitedBy,
		inv.ExpiresAt.UTC(), inv.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invitation for %s: %w", inv.Email, err)
	}
	return q.GetInvitationByID(ctx, id)
}

// GetInvitationByID retrieves an invitation by id
func (q *Queries) GetInvitationByID(ctx context.Context, id int) (*models.Invitation, error) {
	inv, err := scanInvitation(q.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return inv, nil
}

// GetInvitationByTokenHash retrieves an invitation by the hash of its token
func (q *Queries) GetInvitationByTokenHash(ctx context.Context, tokenHash string) (*models.Invitation, error) {
	inv, err := scanInvitation(q.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE token_hash = ?`, tokenHash))
	if err != nil {
		return nil, notFound(err)
	}
	return inv, nil
}

// GetOpenInvitation returns the newest invitation for email in a project
// that is neither accepted nor revoked. Expired rows are included.
func (q *Queries) GetOpenInvitation(ctx context.Context, projectID int, email string) (*models.Invitation, error) {
	inv, err := scanInvitation(q.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE project_id = ? AND email = ? AND accepted_at IS NULL AND revoked_at IS NULL
		 ORDER BY id DESC LIMIT 1`,
		projectID, email,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return inv, nil
}

// ListInvitations returns a project's invitations newest first
func (q *Queries) ListInvitations(ctx context.Context, projectID int) ([]*models.Invitation, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE project_id = ? ORDER BY id DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invitations of project %d: %w", projectID, err)
	}
	defer closeRows(rows)

	invitations := make([]*models.Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// RefreshInvitation replaces the token and expiry of an open invitation
func (q *Queries) RefreshInvitation(ctx context.Context, id int, role models.Role, tokenHash string, invitedBy int, expiresAt time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE invitations SET role = ?, token_hash = ?, invited_by = ?, expires_at = ?
		 WHERE id = ? AND accepted_at IS NULL AND revoked_at IS NULL`,
		string(role), tokenHash, invitedBy, expiresAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to refresh invitation %d: %w", id, err)
	}
	return expectAffected(res)
}

// MarkInvitationAccepted records acceptance. It only matches an open
// invitation so a concurrent accept loses with ErrNotFound.
func (q *Queries) MarkInvitationAccepted(ctx context.Context, id, userID int, now time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE invitations SET accepted_at = ?, accepted_by = ?
		 WHERE id = ? AND accepted_at IS NULL AND revoked_at IS NULL`,
		now.UTC(), userID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to accept invitation %d: %w", id, err)
	}
	return expectAffected(res)
}

// RevokeInvitation marks an open invitation revoked
func (q *Queries) RevokeInvitation(ctx context.Context, id int, now time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE invitations SET revoked_at = ? WHERE id = ? AND accepted_at IS NULL AND revoked_at IS NULL`,
		now.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke invitation %d: %w", id, err)
	}
	return expectAffected(res)
}

// DeleteExpiredInvitations removes unaccepted invitations that expired
// before cutoff and returns how many were removed
func (q *Queries) DeleteExpiredInvitations(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM invitations WHERE accepted_at IS NULL AND expires_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge invitations: %w", err)
	}
	return res.RowsAffected()
}
