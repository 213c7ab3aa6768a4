package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/access"
	"github.com/thenoetrevino/tablero/internal/services/notification"
)

const maxNameLength = 100

// Service defines all project-related business operations
type Service interface {
	// Read operations
	ListProjects(ctx context.Context, actorID int) ([]*models.ProjectSummary, error)
	ListAllProjects(ctx context.Context) ([]*models.Project, error)
	GetProject(ctx context.Context, actorID, id int) (*models.Project, error)

	// Write operations
	CreateProject(ctx context.Context, req CreateProjectRequest) (*models.Project, error)
	UpdateProject(ctx context.Context, req UpdateProjectRequest) (*models.Project, error)
	DeleteProject(ctx context.Context, actorID, id int) error

	// Membership
	ListMembers(ctx context.Context, actorID, projectID int) ([]*models.Member, error)
	UpdateMemberRole(ctx context.Context, req UpdateMemberRoleRequest) error
	RemoveMember(ctx context.Context, actorID, projectID, userID int) error
	RequireRole(ctx context.Context, projectID, userID int, min models.Role) (models.Role, error)
}

// CreateProjectRequest encapsulates data for creating a project
type CreateProjectRequest struct {
	ActorID     int
	Name        string
	Description string
}

// UpdateProjectRequest encapsulates data for updating a project
type UpdateProjectRequest struct {
	ActorID     int
	ID          int
	Name        *string
	Description *string
}

// UpdateMemberRoleRequest changes one member's role
type UpdateMemberRoleRequest struct {
	ActorID   int
	ProjectID int
	UserID    int
	Role      models.Role
}

// notifier delivers inbox notifications
type notifier interface {
	Notify(ctx context.Context, req notification.NotifyRequest) (*models.Notification, error)
	Copy() notification.Copy
}

// service implements Service interface
type service struct {
	store       *database.Store
	eventClient events.EventPublisher
	notifier    notifier
	now         func() time.Time
	logger      *slog.Logger
}

// NewService creates a new project service. eventClient and notifier may
// be nil.
func NewService(store *database.Store, eventClient events.EventPublisher, notifier notifier) Service {
	return &service{
		store:       store,
		eventClient: eventClient,
		notifier:    notifier,
		now:         time.Now,
		logger:      slog.Default().With("component", "project"),
	}
}

func (s *service) RequireRole(ctx context.Context, projectID, userID int, min models.Role) (models.Role, error) {
	if projectID <= 0 {
		return "", ErrInvalidProjectID
	}
	return access.RequireRole(ctx, s.store, projectID, userID, min)
}

// ListProjects returns the projects actorID belongs to
func (s *service) ListProjects(ctx context.Context, actorID int) ([]*models.ProjectSummary, error) {
	if actorID <= 0 {
		return nil, ErrInvalidUserID
	}
	return s.store.ListProjectsForUser(ctx, actorID)
}

// ListAllProjects returns every project regardless of membership
func (s *service) ListAllProjects(ctx context.Context) ([]*models.Project, error) {
	return s.store.ListAllProjects(ctx)
}

// GetProject retrieves a project the actor belongs to
func (s *service) GetProject(ctx context.Context, actorID, id int) (*models.Project, error) {
	if _, err := s.RequireRole(ctx, id, actorID, models.RoleMember); err != nil {
		return nil, err
	}
	return s.getProject(ctx, id)
}

func (s *service) getProject(ctx context.Context, id int) (*models.Project, error) {
	project, err := s.store.GetProjectByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrProjectNotFound
	}
	return project, err
}

// CreateProject creates a project with its default columns and makes the
// actor its owner
func (s *service) CreateProject(ctx context.Context, req CreateProjectRequest) (*models.Project, error) {
	name := strings.TrimSpace(req.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if req.ActorID <= 0 {
		return nil, ErrInvalidUserID
	}

	now := s.now()
	var project *models.Project
	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		var err error
		project, err = q.CreateProject(ctx, name, strings.TrimSpace(req.Description), req.ActorID, now)
		if err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		if err := q.AddMember(ctx, project.ID, req.ActorID, models.RoleOwner, now); err != nil {
			return fmt.Errorf("failed to add owner: %w", err)
		}

		var last *models.Column
		for _, colName := range models.DefaultColumns {
			if last, err = q.CreateColumn(ctx, project.ID, colName, nil, now); err != nil {
				return fmt.Errorf("failed to create default columns: %w", err)
			}
		}
		return q.SetCompletedColumn(ctx, project.ID, last.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project created", "project_id", project.ID, "owner_id", req.ActorID)
	s.publish(events.EventProjectUpdated, project.ID, 0)
	return project, nil
}

// UpdateProject updates name and/or description (admin or owner)
func (s *service) UpdateProject(ctx context.Context, req UpdateProjectRequest) (*models.Project, error) {
	if req.ID <= 0 {
		return nil, ErrInvalidProjectID
	}

	var name *string
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if err := validateName(trimmed); err != nil {
			return nil, err
		}
		name = &trimmed
	}

	if _, err := s.RequireRole(ctx, req.ID, req.ActorID, models.RoleAdmin); err != nil {
		return nil, err
	}

	existing, err := s.getProject(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	// Determine final values
	if name != nil {
		existing.Name = *name
	}
	if req.Description != nil {
		existing.Description = strings.TrimSpace(*req.Description)
	}

	if err := s.store.UpdateProject(ctx, req.ID, existing.Name, existing.Description, s.now()); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	s.publish(events.EventProjectUpdated, req.ID, 0)
	return s.getProject(ctx, req.ID)
}

// DeleteProject removes a project and everything in it (owner only)
func (s *service) DeleteProject(ctx context.Context, actorID, id int) error {
	if _, err := s.RequireRole(ctx, id, actorID, models.RoleOwner); err != nil {
		return err
	}

	if err := s.store.DeleteProject(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to delete project: %w", err)
	}

	s.logger.Info("project deleted", "project_id", id, "actor_id", actorID)
	s.publish(events.EventProjectDeleted, id, 0)
	return nil
}

// ListMembers lists the members of a project the actor belongs to
func (s *service) ListMembers(ctx context.Context, actorID, projectID int) ([]*models.Member, error) {
	if _, err := s.RequireRole(ctx, projectID, actorID, models.RoleMember); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, projectID)
}

// UpdateMemberRole changes a member's role (owner only). The last owner
// cannot be demoted.
func (s *service) UpdateMemberRole(ctx context.Context, req UpdateMemberRoleRequest) error {
	if !req.Role.Valid() {
		return ErrInvalidRole
	}
	if _, err := s.RequireRole(ctx, req.ProjectID, req.ActorID, models.RoleOwner); err != nil {
		return err
	}

	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		current, err := q.GetMemberRole(ctx, req.ProjectID, req.UserID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return ErrMemberNotFound
			}
			return err
		}
		if current == req.Role {
			return nil
		}
		if current == models.RoleOwner {
			if err := ensureAnotherOwner(ctx, q, req.ProjectID); err != nil {
				return err
			}
		}
		return q.UpdateMemberRole(ctx, req.ProjectID, req.UserID, req.Role)
	})
	if err != nil {
		return err
	}

	s.publish(events.EventMembersChanged, req.ProjectID, 0)
	return nil
}

// RemoveMember removes userID from a project. Members may remove
// themselves; removing someone else needs admin, and only owners remove
// owners. The removed user's cards are unassigned and a timer running in
// the project is discarded.
func (s *service) RemoveMember(ctx context.Context, actorID, projectID, userID int) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	need := models.RoleAdmin
	if actorID == userID {
		need = models.RoleMember
	}
	actorRole, err := s.RequireRole(ctx, projectID, actorID, need)
	if err != nil {
		return err
	}

	now := s.now()
	err = s.store.ExecTx(ctx, func(q *database.Queries) error {
		role, err := q.GetMemberRole(ctx, projectID, userID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return ErrMemberNotFound
			}
			return err
		}
		if role == models.RoleOwner {
			if actorID != userID && actorRole != models.RoleOwner {
				return models.ErrForbidden
			}
			if err := ensureAnotherOwner(ctx, q, projectID); err != nil {
				return err
			}
		}

		if err := q.RemoveMember(ctx, projectID, userID); err != nil {
			return err
		}
		if _, err := q.UnassignUser(ctx, projectID, userID, now); err != nil {
			return err
		}
		timer, err := q.GetActiveTimer(ctx, userID)
		switch {
		case errors.Is(err, database.ErrNotFound):
			return nil
		case err != nil:
			return err
		case timer.ProjectID == projectID:
			return q.DeleteActiveTimer(ctx, userID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(events.EventMembersChanged, projectID, 0)
	if actorID != userID {
		s.notifyRemoved(ctx, projectID, userID)
	}
	return nil
}

func ensureAnotherOwner(ctx context.Context, q *database.Queries, projectID int) error {
	owners, err := q.CountOwners(ctx, projectID)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return ErrLastOwner
	}
	return nil
}

func (s *service) notifyRemoved(ctx context.Context, projectID, userID int) {
	if s.notifier == nil {
		return
	}
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		s.logger.Warn("failed to load project for notification", "project_id", projectID, "error", err)
		return
	}
	if _, err := s.notifier.Notify(ctx, notification.NotifyRequest{
		UserID:    userID,
		ProjectID: &projectID,
		Kind:      models.NotificationMemberRemoved,
		Title:     s.notifier.Copy().MemberRemoved(project.Name),
	}); err != nil {
		s.logger.Warn("failed to notify removed member", "project_id", projectID, "user_id", userID, "error", err)
	}
}

func validateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// publish sends a project event after a successful write
func (s *service) publish(eventType events.EventType, projectID, entityID int) {
	if s.eventClient == nil {
		return
	}
	if err := s.eventClient.SendEvent(events.Event{
		Type:      eventType,
		ProjectID: projectID,
		EntityID:  entityID,
	}); err != nil {
		s.logger.Warn("failed to send event", "project_id", projectID, "event_type", eventType, "error", err)
	}
}
