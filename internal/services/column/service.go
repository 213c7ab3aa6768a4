package column

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
)

const (
	maxNameLength = 50

	// archiveAttempts bounds EnsureArchiveColumn's create/re-read loop
	archiveAttempts = 3
)

// Service defines all board and column operations
type Service interface {
	// Read operations
	GetBoard(ctx context.Context, actorID, projectID int) (*models.Board, error)
	ListColumns(ctx context.Context, actorID, projectID int) ([]*models.Column, error)
	GetColumn(ctx context.Context, actorID, id int) (*models.Column, error)

	// Write operations
	CreateColumn(ctx context.Context, req CreateColumnRequest) (*models.Column, error)
	RenameColumn(ctx context.Context, req RenameColumnRequest) (*models.Column, error)
	MoveColumn(ctx context.Context, req MoveColumnRequest) error
	SetCompletedColumn(ctx context.Context, actorID, columnID int) error
	DeleteColumn(ctx context.Context, actorID, columnID int) error

	// EnsureArchiveColumn returns the project's single archive column,
	// creating it on first use and collapsing duplicates.
	EnsureArchiveColumn(ctx context.Context, projectID int) (*models.Column, error)
}

// CreateColumnRequest encapsulates data for creating a column
type CreateColumnRequest struct {
	ActorID   int
	ProjectID int
	Name      string
	AfterID   *int // Optional: ID of column to insert after (nil = append to end)
}

// RenameColumnRequest encapsulates data for renaming a column
type RenameColumnRequest struct {
	ActorID  int
	ColumnID int
	Name     string
}

// MoveColumnRequest relinks a column. A nil AfterID moves it to the head.
type MoveColumnRequest struct {
	ActorID  int
	ColumnID int
	AfterID  *int
}

// archiveQueries is the part of the store EnsureArchiveColumn races on
type archiveQueries interface {
	ListArchiveColumns(ctx context.Context, projectID int) ([]*models.Column, error)
	CreateArchiveColumn(ctx context.Context, projectID int, now time.Time) (*models.Column, error)
}

type service struct {
	store       *database.Store
	archives    archiveQueries
	eventClient events.EventPublisher
	now         func() time.Time
	logger      *slog.Logger
}

// NewService creates a new column service
func NewService(store *database.Store, eventClient events.EventPublisher) Service {
	return &service{
		store:       store,
		archives:    store,
		eventClient: eventClient,
		now:         time.Now,
		logger:      slog.Default().With("component", "column"),
	}
}

// GetBoard returns the ordered standard columns with their active cards
func (s *service) GetBoard(ctx context.Context, actorID, projectID int) (*models.Board, error) {
	if err := s.requireMember(ctx, projectID, actorID); err != nil {
		return nil, err
	}

	project, err := s.store.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	columns, err := s.store.ListColumns(ctx, projectID)
	if err != nil {
		return nil, err
	}
	cards, err := s.store.ListBoardCards(ctx, projectID)
	if err != nil {
		return nil, err
	}

	board := &models.Board{Project: project, Columns: make([]*models.BoardColumn, 0, len(columns))}
	for _, col := range columns {
		colCards := cards[col.ID]
		if colCards == nil {
			colCards = []*models.CardSummary{}
		}
		board.Columns = append(board.Columns, &models.BoardColumn{Column: col, Cards: colCards})
	}
	return board, nil
}

// ListColumns retrieves the board columns of a project in order
func (s *service) ListColumns(ctx context.Context, actorID, projectID int) ([]*models.Column, error) {
	if err := s.requireMember(ctx, projectID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListColumns(ctx, projectID)
}

// GetColumn retrieves a specific column
func (s *service) GetColumn(ctx context.Context, actorID, id int) (*models.Column, error) {
	col, err := s.getColumn(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, col.ProjectID, actorID); err != nil {
		return nil, err
	}
	return col, nil
}

// CreateColumn creates a new column with linked list management
func (s *service) CreateColumn(ctx context.Context, req CreateColumnRequest) (*models.Column, error) {
	name := strings.TrimSpace(req.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if req.ProjectID <= 0 {
		return nil, ErrInvalidProjectID
	}
	if err := s.requireAdmin(ctx, req.ProjectID, req.ActorID); err != nil {
		return nil, err
	}

	var col *models.Column
	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		var err error
		col, err = q.CreateColumn(ctx, req.ProjectID, name, req.AfterID, s.now())
		return err
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrColumnNotFound
		}
		return nil, fmt.Errorf("failed to create column: %w", err)
	}

	s.publish(req.ProjectID, col.ID)
	return col, nil
}

// RenameColumn changes a column's name
func (s *service) RenameColumn(ctx context.Context, req RenameColumnRequest) (*models.Column, error) {
	name := strings.TrimSpace(req.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	col, err := s.writableColumn(ctx, req.ActorID, req.ColumnID)
	if err != nil {
		return nil, err
	}

	if err := s.store.RenameColumn(ctx, col.ID, name); err != nil {
		return nil, fmt.Errorf("failed to rename column: %w", err)
	}
	col.Name = name

	s.publish(col.ProjectID, col.ID)
	return col, nil
}

// MoveColumn relinks a column after another one (or at the head)
func (s *service) MoveColumn(ctx context.Context, req MoveColumnRequest) error {
	if req.AfterID != nil && *req.AfterID == req.ColumnID {
		return ErrInvalidPosition
	}
	col, err := s.writableColumn(ctx, req.ActorID, req.ColumnID)
	if err != nil {
		return err
	}
	if req.AfterID != nil {
		after, err := s.getColumn(ctx, *req.AfterID)
		if err != nil {
			return err
		}
		if after.ProjectID != col.ProjectID || after.IsArchive() {
			return ErrColumnNotFound
		}
	}

	if err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		return q.MoveColumn(ctx, col.ID, req.AfterID)
	}); err != nil {
		return fmt.Errorf("failed to move column: %w", err)
	}

	s.publish(col.ProjectID, col.ID)
	return nil
}

// SetCompletedColumn marks the column whose cards count as completed
func (s *service) SetCompletedColumn(ctx context.Context, actorID, columnID int) error {
	col, err := s.writableColumn(ctx, actorID, columnID)
	if err != nil {
		return err
	}

	if err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		return q.SetCompletedColumn(ctx, col.ProjectID, col.ID)
	}); err != nil {
		return fmt.Errorf("failed to set completed column: %w", err)
	}

	s.publish(col.ProjectID, col.ID)
	return nil
}

// DeleteColumn removes an empty column (business rule: no cards, not the
// archive column, not the last column)
func (s *service) DeleteColumn(ctx context.Context, actorID, columnID int) error {
	col, err := s.writableColumn(ctx, actorID, columnID)
	if err != nil {
		return err
	}

	err = s.store.ExecTx(ctx, func(q *database.Queries) error {
		count, err := q.CountCardsInColumn(ctx, col.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrColumnHasCards
		}
		if col.PrevID == nil && col.NextID == nil {
			return ErrLastColumn
		}
		return q.DeleteColumn(ctx, col.ID)
	})
	if err != nil {
		return err
	}

	s.publish(col.ProjectID, col.ID)
	return nil
}

// EnsureArchiveColumn returns the single archive column of a project.
// A missing one is created; losing a creation race to another writer shows
// up as a unique violation and the winner is read back. Legacy duplicates
// are merged into the oldest. Safe to call repeatedly.
func (s *service) EnsureArchiveColumn(ctx context.Context, projectID int) (*models.Column, error) {
	if projectID <= 0 {
		return nil, ErrInvalidProjectID
	}

	for attempt := 1; attempt <= archiveAttempts; attempt++ {
		archives, err := s.archives.ListArchiveColumns(ctx, projectID)
		if err != nil {
			return nil, err
		}

		switch {
		case len(archives) == 1:
			return archives[0], nil

		case len(archives) > 1:
			return s.reconcileArchive(ctx, projectID, len(archives))

		default:
			col, err := s.archives.CreateArchiveColumn(ctx, projectID, s.now())
			if err == nil {
				s.logger.Info("archive column created", "project_id", projectID, "column_id", col.ID)
				return col, nil
			}
			if !database.IsUniqueViolation(err) {
				return nil, err
			}
			s.logger.Debug("archive column created concurrently, re-reading",
				"project_id", projectID, "attempt", attempt)
		}
	}
	return nil, ErrArchiveColumnContention
}

func (s *service) reconcileArchive(ctx context.Context, projectID, found int) (*models.Column, error) {
	var keeper *models.Column
	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		var err error
		keeper, err = q.ReconcileArchiveColumns(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile archive columns: %w", err)
	}
	s.logger.Warn("merged duplicate archive columns",
		"project_id", projectID,
		"kept_column_id", keeper.ID,
		"removed", found-1)
	s.publish(projectID, keeper.ID)
	return keeper, nil
}

// writableColumn loads a standard column the actor may restructure
func (s *service) writableColumn(ctx context.Context, actorID, columnID int) (*models.Column, error) {
	col, err := s.getColumn(ctx, columnID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, col.ProjectID, actorID); err != nil {
		return nil, err
	}
	if col.IsArchive() {
		return nil, ErrArchiveColumnImmutable
	}
	return col, nil
}

func (s *service) getColumn(ctx context.Context, id int) (*models.Column, error) {
	if id <= 0 {
		return nil, ErrInvalidColumnID
	}
	col, err := s.store.GetColumnByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrColumnNotFound
	}
	return col, err
}

func (s *service) requireMember(ctx context.Context, projectID, actorID int) error {
	if projectID <= 0 {
		return ErrInvalidProjectID
	}
	_, err := access.RequireMember(ctx, s.store, projectID, actorID)
	return err
}

func (s *service) requireAdmin(ctx context.Context, projectID, actorID int) error {
	_, err := access.RequireRole(ctx, s.store, projectID, actorID, models.RoleAdmin)
	return err
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

// publish sends a column event after a successful write
func (s *service) publish(projectID, columnID int) {
	if s.eventClient == nil {
		return
	}
	if err := s.eventClient.SendEvent(events.Event{
		Type:      events.EventColumnsChanged,
		ProjectID: projectID,
		EntityID:  columnID,
	}); err != nil {
		s.logger.Warn("failed to send event", "column_id", columnID, "project_id", projectID, "error", err)
	}
}
