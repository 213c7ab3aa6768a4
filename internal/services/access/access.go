// Package access answers "may this user act on this project".
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/models"
)

// RoleReader looks up a user's role in a project. *database.Queries
// satisfies it.
type RoleReader interface {
	GetMemberRole(ctx context.Context, projectID, userID int) (models.Role, error)
}

// RequireRole returns the user's role when it is at least min.
// A non-member gets models.ErrNotMember; a member below min gets
// models.ErrForbidden.
func RequireRole(ctx context.Context, roles RoleReader, projectID, userID int, min models.Role) (models.Role, error) {
	role, err := roles.GetMemberRole(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", models.ErrNotMember
		}
		return "", fmt.Errorf("failed to read membership: %w", err)
	}
	if !role.AtLeast(min) {
		return role, models.ErrForbidden
	}
	return role, nil
}

// RequireMember is RequireRole with the lowest role
func RequireMember(ctx context.Context, roles RoleReader, projectID, userID int) (models.Role, error) {
	return RequireRole(ctx, roles, projectID, userID, models.RoleMember)
}
