package label

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/access"
)

var hexColorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

const maxNameLength = 50

// Service defines all label-related business operations
type Service interface {
	// Read operations
	ListLabels(ctx context.Context, actorID, projectID int) ([]*models.Label, error)

	// Write operations
	CreateLabel(ctx context.Context, req CreateLabelRequest) (*models.Label, error)
	UpdateLabel(ctx context.Context, req UpdateLabelRequest) (*models.Label, error)
	DeleteLabel(ctx context.Context, actorID, id int) error
}

// CreateLabelRequest encapsulates data for creating a label
type CreateLabelRequest struct {
	ActorID   int
	ProjectID int
	Name      string
	Color     string // Hex color like #FF5733
}

// UpdateLabelRequest encapsulates data for updating a label
type UpdateLabelRequest struct {
	ActorID int
	ID      int
	Name    *string
	Color   *string
}

type service struct {
	store       *database.Store
	eventClient events.EventPublisher
	logger      *slog.Logger
}

// NewService creates a new label service
func NewService(store *database.Store, eventClient events.EventPublisher) Service {
	return &service{
		store:       store,
		eventClient: eventClient,
		logger:      slog.Default().With("component", "label"),
	}
}

// ListLabels retrieves all labels for a project
func (s *service) ListLabels(ctx context.Context, actorID, projectID int) ([]*models.Label, error) {
	if projectID <= 0 {
		return nil, ErrInvalidProjectID
	}
	if _, err := access.RequireMember(ctx, s.store, projectID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListLabels(ctx, projectID)
}

// CreateLabel creates a new label with validation
func (s *service) CreateLabel(ctx context.Context, req CreateLabelRequest) (*models.Label, error) {
	name := strings.TrimSpace(req.Name)
	if err := validate(name, req.Color); err != nil {
		return nil, err
	}
	if req.ProjectID <= 0 {
		return nil, ErrInvalidProjectID
	}
	if _, err := access.RequireMember(ctx, s.store, req.ProjectID, req.ActorID); err != nil {
		return nil, err
	}

	label, err := s.store.CreateLabel(ctx, req.ProjectID, name, strings.ToUpper(req.Color))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateLabel
		}
		return nil, fmt.Errorf("failed to create label: %w", err)
	}

	s.publish(label.ProjectID, label.ID)
	return label, nil
}

// UpdateLabel updates an existing label
func (s *service) UpdateLabel(ctx context.Context, req UpdateLabelRequest) (*models.Label, error) {
	existing, err := s.writableLabel(ctx, req.ActorID, req.ID)
	if err != nil {
		return nil, err
	}

	name := existing.Name
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}
	color := existing.Color
	if req.Color != nil {
		color = *req.Color
	}
	if err := validate(name, color); err != nil {
		return nil, err
	}

	if err := s.store.UpdateLabel(ctx, existing.ID, name, strings.ToUpper(color)); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateLabel
		}
		return nil, fmt.Errorf("failed to update label: %w", err)
	}

	s.publish(existing.ProjectID, existing.ID)
	return s.store.GetLabelByID(ctx, existing.ID)
}

// DeleteLabel deletes a label; it is detached from every card
func (s *service) DeleteLabel(ctx context.Context, actorID, id int) error {
	existing, err := s.writableLabel(ctx, actorID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteLabel(ctx, id); err != nil {
		return fmt.Errorf("failed to delete label: %w", err)
	}
	s.publish(existing.ProjectID, id)
	return nil
}

func (s *service) writableLabel(ctx context.Context, actorID, id int) (*models.Label, error) {
	if id <= 0 {
		return nil, ErrInvalidLabelID
	}
	label, err := s.store.GetLabelByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrLabelNotFound
		}
		return nil, err
	}
	if _, err := access.RequireMember(ctx, s.store, label.ProjectID, actorID); err != nil {
		return nil, err
	}
	return label, nil
}

func validate(name, color string) error {
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return ErrNameTooLong
	}
	if !hexColorRegex.MatchString(color) {
		return ErrInvalidColor
	}
	return nil
}

// publish sends a label event
func (s *service) publish(projectID, labelID int) {
	if s.eventClient == nil {
		return
	}
	if err := s.eventClient.SendEvent(events.Event{
		Type:      events.EventLabelsChanged,
		ProjectID: projectID,
		EntityID:  labelID,
	}); err != nil {
		s.logger.Warn("failed to send event", "label_id", labelID, "project_id", projectID, "error", err)
	}
}
