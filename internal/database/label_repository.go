package database

import (
	"context"
	"fmt"

	"github.com/thenoetrevino/tablero/internal/models"
)

// CreateLabel creates a new label for a project
func (q *Queries) CreateLabel(ctx context.Context, projectID int, name, color string) (*models.Label, error) {
	id, err := insertID(ctx, q.db,
		`INSERT INTO labels (project_id, name, color) VALUES (?, ?, ?)`,
		projectID, name, color,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert label '%s': %w", name, err)
	}
	return &models.Label{ID: id, Name: name, Color: color, ProjectID: projectID}, nil
}

// GetLabelByID retrieves a label by id
func (q *Queries) GetLabelByID(ctx context.Context, id int) (*models.Label, error) {
	label := &models.Label{}
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, color, project_id FROM labels WHERE id = ?`, id,
	).Scan(&label.ID, &label.Name, &label.Color, &label.ProjectID)
	if err != nil {
		return nil, notFound(err)
	}
	return label, nil
}

// ListLabels retrieves all labels for a specific project
func (q *Queries) ListLabels(ctx context.Context, projectID int) ([]*models.Label, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, color, project_id FROM labels WHERE project_id = ? ORDER BY name`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels of project %d: %w", projectID, err)
	}
	defer closeRows(rows)

	labels := make([]*models.Label, 0)
	for rows.Next() {
		label := &models.Label{}
		if err := rows.Scan(&label.ID, &label.Name, &label.Color, &label.ProjectID); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// UpdateLabel updates a label's name and color
func (q *Queries) UpdateLabel(ctx context.Context, id int, name, color string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE labels SET name = ?, color = ? WHERE id = ?`, name, color, id)
	if err != nil {
		return fmt.Errorf("failed to update label %d: %w", id, err)
	}
	return expectAffected(res)
}

// DeleteLabel deletes a label; card associations cascade
func (q *Queries) DeleteLabel(ctx context.Context, id int) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM labels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete label %d: %w", id, err)
	}
	return expectAffected(res)
}

// AttachLabel associates a label with a card. Attaching twice is a no-op.
func (q *Queries) AttachLabel(ctx context.Context, cardID, labelID int) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO card_labels (card_id, label_id) VALUES (?, ?)`, cardID, labelID)
	if err != nil {
		return fmt.Errorf("failed to attach label %d to card %d: %w", labelID, cardID, err)
	}
	return nil
}

// DetachLabel removes a label from a card
func (q *Queries) DetachLabel(ctx context.Context, cardID, labelID int) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM card_labels WHERE card_id = ? AND label_id = ?`, cardID, labelID)
	if err != nil {
		return fmt.Errorf("failed to detach label %d from card %d: %w", labelID, cardID, err)
	}
	return expectAffected(res)
}

// LabelsForCard retrieves the labels attached to a card
func (q *Queries) LabelsForCard(ctx context.Context, cardID int) ([]*models.Label, error) {
	byCard, err := q.LabelsForCards(ctx, []int{cardID})
	if err != nil {
		return nil, err
	}
	if labels, ok := byCard[cardID]; ok {
		return labels, nil
	}
	return []*models.Label{}, nil
}

// LabelsForCards loads labels for many cards in one query
func (q *Queries) LabelsForCards(ctx context.Context, cardIDs []int) (map[int][]*models.Label, error) {
	result := make(map[int][]*models.Label)
	if len(cardIDs) == 0 {
		return result, nil
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT cl.card_id, l.id, l.name, l.color, l.project_id
		 FROM card_labels cl
		 JOIN labels l ON l.id = cl.label_id
		 WHERE cl.card_id IN (`+placeholders(len(cardIDs))+`)
		 ORDER BY l.name`,
		intsToArgs(cardIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query card labels: %w", err)
	}
	defer closeRows(rows)

	for rows.Next() {
		var cardID int
		label := &models.Label{}
		if err := rows.Scan(&cardID, &label.ID, &label.Name, &label.Color, &label.ProjectID); err != nil {
			return nil, fmt.Errorf("failed to scan card label: %w", err)
		}
		result[cardID] = append(result[cardID], label)
	}
	return result, rows.Err()
}
