package database

import (
	"context"
	"fmt"
	"time"

	"github.com/thenoetrevino/tablero/internal/models"
)

const projectColumns = `p.id, p.name, p.description, p.owner_id, p.created_at, p.updated_at`

func scanProject(row rowScanner) (*models.Project, error) {
	p := &models.Project{}
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateProject inserts the project row and its ticket counter
func (q *Queries) CreateProject(ctx context.Context, name, description string, ownerID int, now time.Time) (*models.Project, error) {
	id, err := insertID(ctx, q.db,
		`INSERT INTO projects (name, description, owner_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		name, description, ownerID, now.UTC(), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project '%s': %w", name, err)
	}

	if _, err := q.db.ExecContext(ctx,
		`INSERT INTO project_counters (project_id, next_card_number) VALUES (?, 1)`,
		id,
	); err != nil {
		return nil, fmt.Errorf("failed to initialize project counter for project %d: %w", id, err)
	}

	return q.GetProjectByID(ctx, id)
}

// GetProjectByID retrieves a project by its ID
func (q *Queries) GetProjectByID(ctx context.Context, id int) (*models.Project, error) {
	project, err := scanProject(q.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects p WHERE p.id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return project, nil
}

// ListProjectsForUser returns every project the user is a member of with
// their role and board counts.
func (q *Queries) ListProjectsForUser(ctx context.Context, userID int) ([]*models.ProjectSummary, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+projectColumns+`, m.role,
		        (SELECT COUNT(*) FROM cards c WHERE c.project_id = p.id AND c.archived_at IS NULL),
		        (SELECT COUNT(*) FROM project_members pm WHERE pm.project_id = p.id)
		 FROM projects p
		 JOIN project_members m ON m.project_id = p.id AND m.user_id = ?
		 ORDER BY p.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects for user %d: %w", userID, err)
	}
	defer closeRows(rows)

	summaries := make([]*models.ProjectSummary, 0)
	for rows.Next() {
		s := &models.ProjectSummary{}
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Description, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt,
			&s.Role, &s.CardCount, &s.MemberCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// ListAllProjects returns every project ordered by id
func (q *Queries) ListAllProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects p ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query all projects: %w", err)
	}
	defer closeRows(rows)

	projects := make([]*models.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// UpdateProject updates a project's name and description
func (q *Queries) UpdateProject(ctx context.Context, id int, name, description string, now time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		name, description, now.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update project %d: %w", id, err)
	}
	return expectAffected(res)
}

// DeleteProject deletes a project; columns, cards and memberships cascade
func (q *Queries) DeleteProject(ctx context.Context, id int) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project %d: %w", id, err)
	}
	return expectAffected(res)
}

// NextCardNumber reserves the next ticket number of a project
func (q *Queries) NextCardNumber(ctx context.Context, projectID int) (int, error) {
	var number int
	err := q.db.QueryRowContext(ctx,
		`UPDATE project_counters SET next_card_number = next_card_number + 1
		 WHERE project_id = ?
		 RETURNING next_card_number - 1`,
		projectID,
	).Scan(&number)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve card number for project %d: %w", projectID, notFound(err))
	}
	return number, nil
}

// ============================================================================
// Members
// ============================================================================

// AddMember inserts a membership. A duplicate membership is a unique
// violation.
func (q *Queries) AddMember(ctx context.Context, projectID, userID int, role models.Role, now time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		projectID, userID, string(role), now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to add user %d to project %d: %w", userID, projectID, err)
	}
	return nil
}

// GetMemberRole returns the user's role in the project or ErrNotFound
func (q *Queries) GetMemberRole(ctx context.Context, projectID, userID int) (models.Role, error) {
	var role string
	err := q.db.QueryRowContext(ctx,
		`SELECT role FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, userID,
	).Scan(&role)
	if err != nil {
		return "", notFound(err)
	}
	return models.Role(role), nil
}

// ListMembers returns the members of a project ordered by join time
func (q *Queries) ListMembers(ctx context.Context, projectID int) ([]*models.Member, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT m.project_id, m.user_id, u.email, u.name, m.role, m.joined_at
		 FROM project_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.project_id = ?
		 ORDER BY m.joined_at, m.user_id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query members of project %d: %w", projectID, err)
	}
	defer closeRows(rows)

	members := make([]*models.Member, 0)
	for rows.Next() {
		m := &models.Member{}
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Email, &m.Name, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpdateMemberRole changes a member's role
func (q *Queries) UpdateMemberRole(ctx context.Context, projectID, userID int, role models.Role) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE project_members SET role = ? WHERE project_id = ? AND user_id = ?`,
		string(role), projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update role of user %d: %w", userID, err)
	}
	return expectAffected(res)
}

// RemoveMember deletes a membership
func (q *Queries) RemoveMember(ctx context.Context, projectID, userID int) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove user %d from project %d: %w", userID, projectID, err)
	}
	return expectAffected(res)
}

// CountOwners returns how many owners a project has
func (q *Queries) CountOwners(ctx context.Context, projectID int) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM project_members WHERE project_id = ? AND role = ?`,
		projectID, string(models.RoleOwner),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count owners of project %d: %w", projectID, err)
	}
	return n, nil
}
