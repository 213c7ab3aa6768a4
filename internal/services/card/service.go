package card

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/access"
	"github.com/thenoetrevino/tablero/internal/services/notification"
)

const (
	maxTitleLength       = 255
	maxDescriptionLength = 10000
)

// Service defines all card-related business operations
type Service interface {
	// Read operations
	GetCard(ctx context.Context, actorID, id int) (*models.CardDetail, error)
	ListCards(ctx context.Context, actorID, projectID int, archived bool) ([]*models.Card, error)

	// Write operations
	CreateCard(ctx context.Context, req CreateCardRequest) (*models.Card, error)
	UpdateCard(ctx context.Context, req UpdateCardRequest) (*models.Card, error)
	MoveCard(ctx context.Context, req MoveCardRequest) (*models.Card, error)
	DeleteCard(ctx context.Context, actorID, id int) error

	// Archive
	ArchiveCard(ctx context.Context, actorID, id int) (*models.Card, error)
	RestoreCard(ctx context.Context, actorID, id int) (*models.Card, error)

	// Labels
	AttachLabel(ctx context.Context, actorID, cardID, labelID int) error
	DetachLabel(ctx context.Context, actorID, cardID, labelID int) error
}

// CreateCardRequest encapsulates data for creating a card
type CreateCardRequest struct {
	ActorID     int
	ProjectID   int
	ColumnID    *int // nil = first column
	Title       string
	Description string
	Priority    models.Priority // empty = medium
	AssigneeID  *int
	StoryID     *int
	DueDate     *time.Time
	LabelIDs    []int
}

// UpdateCardRequest is a partial update. The Clear flags unset optional
// fields and may not be combined with a value for the same field.
type UpdateCardRequest struct {
	ActorID       int
	ID            int
	Title         *string
	Description   *string
	Priority      *models.Priority
	AssigneeID    *int
	ClearAssignee bool
	StoryID       *int
	ClearStory    bool
	DueDate       *time.Time
	ClearDueDate  bool
}

// MoveCardRequest places a card in a column at a zero-based position.
// Positions past the end append.
type MoveCardRequest struct {
	ActorID  int
	CardID   int
	ColumnID int
	Position int
}

// archiver provides the project's archive column
type archiver interface {
	EnsureArchiveColumn(ctx context.Context, projectID int) (*models.Column, error)
}

// notifier delivers inbox notifications
type notifier interface {
	Notify(ctx context.Context, req notification.NotifyRequest) (*models.Notification, error)
	Copy() notification.Copy
}

type service struct {
	store       *database.Store
	eventClient events.EventPublisher
	archiver    archiver
	notifier    notifier
	now         func() time.Time
	logger      *slog.Logger
}

// NewService creates a new card service. eventClient and notifier may be nil.
func NewService(store *database.Store, eventClient events.EventPublisher, archiver archiver, notifier notifier) Service {
	return &service{
		store:       store,
		eventClient: eventClient,
		archiver:    archiver,
		notifier:    notifier,
		now:         time.Now,
		logger:      slog.Default().With("component", "card"),
	}
}

// ============================================================================
// Reads
// ============================================================================

// GetCard returns a card with its labels and related counts
func (s *service) GetCard(ctx context.Context, actorID, id int) (*models.CardDetail, error) {
	card, err := s.memberCard(ctx, actorID, id)
	if err != nil {
		return nil, err
	}

	labels, err := s.store.LabelsForCard(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.GetCardCounts(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	col, err := s.store.GetColumnByID(ctx, card.ColumnID)
	if err != nil {
		return nil, err
	}

	return &models.CardDetail{
		Card:            card,
		Labels:          labels,
		CommentCount:    counts.Comments,
		AttachmentCount: counts.Attachments,
		TrackedSeconds:  counts.TrackedSeconds,
		ColumnName:      col.Name,
	}, nil
}

// ListCards returns the active or the archived cards of a project
func (s *service) ListCards(ctx context.Context, actorID, projectID int, archived bool) ([]*models.Card, error) {
	if projectID <= 0 {
		return nil, ErrInvalidProjectID
	}
	if _, err := access.RequireMember(ctx, s.store, projectID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListCards(ctx, projectID, archived)
}

// ============================================================================
// Writes
// ============================================================================

// CreateCard creates a card at the tail of its column with the next ticket
// number of the project
func (s *service) CreateCard(ctx context.Context, req CreateCardRequest) (*models.Card, error) {
	title := strings.TrimSpace(req.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(req.Description) > maxDescriptionLength {
		return nil, ErrDescriptionTooLong
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !req.Priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if req.ProjectID <= 0 {
		return nil, ErrInvalidProjectID
	}
	if _, err := access.RequireMember(ctx, s.store, req.ProjectID, req.ActorID); err != nil {
		return nil, err
	}

	now := s.now()
	var card *models.Card
	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		columnID, err := s.targetColumn(ctx, q, req.ProjectID, req.ColumnID)
		if err != nil {
			return err
		}
		if err := checkAssignee(ctx, q, req.ProjectID, req.AssigneeID); err != nil {
			return err
		}
		if err := checkStory(ctx, q, req.ProjectID, req.StoryID); err != nil {
			return err
		}

		number, err := q.NextCardNumber(ctx, req.ProjectID)
		if err != nil {
			return fmt.Errorf("failed to reserve card number: %w", err)
		}
		card, err = q.CreateCard(ctx, database.CreateCardParams{
			ProjectID:   req.ProjectID,
			ColumnID:    columnID,
			StoryID:     req.StoryID,
			Number:      number,
			Title:       title,
			Description: req.Description,
			Priority:    req.Priority,
			AssigneeID:  req.AssigneeID,
			CreatedBy:   req.ActorID,
			DueDate:     req.DueDate,
			Now:         now,
		})
		if err != nil {
			return err
		}

		for _, labelID := range req.LabelIDs {
			if err := attachLabel(ctx, q, card, labelID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(events.EventCardCreated, card.ProjectID, card.ID)
	if card.AssigneeID != nil {
		s.notifyAssigned(ctx, req.ActorID, card)
	}
	return card, nil
}

// UpdateCard applies a partial update to an active card
func (s *service) UpdateCard(ctx context.Context, req UpdateCardRequest) (*models.Card, error) {
	if (req.ClearAssignee && req.AssigneeID != nil) ||
		(req.ClearStory && req.StoryID != nil) ||
		(req.ClearDueDate && req.DueDate != nil) {
		return nil, ErrConflictingUpdate
	}
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if err := validateTitle(trimmed); err != nil {
			return nil, err
		}
		req.Title = &trimmed
	}
	if req.Description != nil && utf8.RuneCountInString(*req.Description) > maxDescriptionLength {
		return nil, ErrDescriptionTooLong
	}
	if req.Priority != nil && !req.Priority.Valid() {
		return nil, ErrInvalidPriority
	}

	var (
		card             *models.Card
		previousAssignee *int
	)
	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		var err error
		card, err = s.activeCard(ctx, q, req.ActorID, req.ID)
		if err != nil {
			return err
		}
		previousAssignee = card.AssigneeID

		if req.Title != nil {
			card.Title = *req.Title
		}
		if req.Description != nil {
			card.Description = *req.Description
		}
		if req.Priority != nil {
			card.Priority = *req.Priority
		}
		switch {
		case req.ClearAssignee:
			card.AssigneeID = nil
		case req.AssigneeID != nil:
			if err := checkAssignee(ctx, q, card.ProjectID, req.AssigneeID); err != nil {
				return err
			}
			card.AssigneeID = req.AssigneeID
		}
		switch {
		case req.ClearStory:
			card.StoryID = nil
		case req.StoryID != nil:
			if err := checkStory(ctx, q, card.ProjectID, req.StoryID); err != nil {
				return err
			}
			card.StoryID = req.StoryID
		}
		switch {
		case req.ClearDueDate:
			card.DueDate = nil
		case req.DueDate != nil:
			card.DueDate = req.DueDate
		}

		if err := q.UpdateCard(ctx, card, s.now()); err != nil {
			return err
		}
		card, err = q.GetCardByID(ctx, card.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(events.EventCardUpdated, card.ProjectID, card.ID)
	if card.AssigneeID != nil && !sameID(previousAssignee, card.AssigneeID) {
		s.notifyAssigned(ctx, req.ActorID, card)
	}
	return card, nil
}

// MoveCard moves an active card within or across board columns
func (s *service) MoveCard(ctx context.Context, req MoveCardRequest) (*models.Card, error) {
	if req.Position < 0 {
		return nil, ErrInvalidPosition
	}

	var card *models.Card
	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		var err error
		card, err = s.activeCard(ctx, q, req.ActorID, req.CardID)
		if err != nil {
			return err
		}
		if _, err := s.targetColumn(ctx, q, card.ProjectID, &req.ColumnID); err != nil {
			return err
		}
		if err := q.MoveCard(ctx, card.ID, req.ColumnID, req.Position, s.now()); err != nil {
			return err
		}
		card, err = q.GetCardByID(ctx, card.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(events.EventCardMoved, card.ProjectID, card.ID)
	return card, nil
}

// DeleteCard removes a card (creator or admin)
func (s *service) DeleteCard(ctx context.Context, actorID, id int) error {
	card, err := s.getCard(ctx, s.store.Queries, id)
	if err != nil {
		return err
	}
	need := models.RoleAdmin
	if card.CreatedBy == actorID {
		need = models.RoleMember
	}
	if _, err := access.RequireRole(ctx, s.store, card.ProjectID, actorID, need); err != nil {
		return err
	}

	if err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		return q.DeleteCard(ctx, id)
	}); err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}

	s.publish(events.EventCardDeleted, card.ProjectID, id)
	return nil
}

// ============================================================================
// Archive
// ============================================================================

// ArchiveCard moves a card to the tail of the project's archive column,
// remembering the column it came from
func (s *service) ArchiveCard(ctx context.Context, actorID, id int) (*models.Card, error) {
	card, err := s.memberCard(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if card.IsArchived() {
		return nil, ErrCardArchived
	}

	archive, err := s.archiver.EnsureArchiveColumn(ctx, card.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get archive column: %w", err)
	}

	err = s.store.ExecTx(ctx, func(q *database.Queries) error {
		current, err := s.getCard(ctx, q, id)
		if err != nil {
			return err
		}
		if current.IsArchived() {
			return ErrCardArchived
		}
		if err := q.ArchiveCard(ctx, id, archive.ID, s.now()); err != nil {
			return err
		}
		card, err = q.GetCardByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(events.EventCardArchived, card.ProjectID, card.ID)
	return card, nil
}

// RestoreCard returns an archived card to the tail of the column it was
// archived from, or to the first column when that one is gone
func (s *service) RestoreCard(ctx context.Context, actorID, id int) (*models.Card, error) {
	var card *models.Card
	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		var err error
		card, err = s.getCard(ctx, q, id)
		if err != nil {
			return err
		}
		if _, err := access.RequireMember(ctx, q, card.ProjectID, actorID); err != nil {
			return err
		}
		if !card.IsArchived() {
			return ErrCardNotArchived
		}

		target, err := restoreTarget(ctx, q, card)
		if err != nil {
			return err
		}
		if err := q.RestoreCard(ctx, id, target, s.now()); err != nil {
			return err
		}
		card, err = q.GetCardByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(events.EventCardRestored, card.ProjectID, card.ID)
	return card, nil
}

func restoreTarget(ctx context.Context, q *database.Queries, card *models.Card) (int, error) {
	if card.ArchivedFromColumnID != nil {
		col, err := q.GetColumnByID(ctx, *card.ArchivedFromColumnID)
		switch {
		case err == nil && col.ProjectID == card.ProjectID && !col.IsArchive():
			return col.ID, nil
		case err != nil && !errors.Is(err, database.ErrNotFound):
			return 0, err
		}
	}
	first, err := q.FirstColumn(ctx, card.ProjectID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, ErrNoColumns
		}
		return 0, err
	}
	return first.ID, nil
}

// ============================================================================
// Labels
// ============================================================================

// AttachLabel tags an active card with a label of its project
func (s *service) AttachLabel(ctx context.Context, actorID, cardID, labelID int) error {
	var card *models.Card
	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		var err error
		if card, err = s.activeCard(ctx, q, actorID, cardID); err != nil {
			return err
		}
		return attachLabel(ctx, q, card, labelID)
	})
	if err != nil {
		return err
	}
	s.publish(events.EventCardUpdated, card.ProjectID, card.ID)
	return nil
}

// DetachLabel removes a label from an active card
func (s *service) DetachLabel(ctx context.Context, actorID, cardID, labelID int) error {
	if labelID <= 0 {
		return ErrInvalidLabelID
	}
	var card *models.Card
	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		var err error
		if card, err = s.activeCard(ctx, q, actorID, cardID); err != nil {
			return err
		}
		return q.DetachLabel(ctx, cardID, labelID)
	})
	if err != nil {
		return err
	}
	s.publish(events.EventCardUpdated, card.ProjectID, card.ID)
	return nil
}

func attachLabel(ctx context.Context, q *database.Queries, card *models.Card, labelID int) error {
	if labelID <= 0 {
		return ErrInvalidLabelID
	}
	label, err := q.GetLabelByID(ctx, labelID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrLabelNotInProject
		}
		return err
	}
	if label.ProjectID != card.ProjectID {
		return ErrLabelNotInProject
	}
	return q.AttachLabel(ctx, card.ID, labelID)
}

// ============================================================================
// Helpers
// ============================================================================

func (s *service) getCard(ctx context.Context, q *database.Queries, id int) (*models.Card, error) {
	if id <= 0 {
		return nil, ErrInvalidCardID
	}
	card, err := q.GetCardByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrCardNotFound
	}
	return card, err
}

// memberCard loads a card the actor may see
func (s *service) memberCard(ctx context.Context, actorID, id int) (*models.Card, error) {
	card, err := s.getCard(ctx, s.store.Queries, id)
	if err != nil {
		return nil, err
	}
	if _, err := access.RequireMember(ctx, s.store, card.ProjectID, actorID); err != nil {
		return nil, err
	}
	return card, nil
}

// activeCard loads a non-archived card the actor may edit
func (s *service) activeCard(ctx context.Context, q *database.Queries, actorID, id int) (*models.Card, error) {
	card, err := s.getCard(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if _, err := access.RequireMember(ctx, q, card.ProjectID, actorID); err != nil {
		return nil, err
	}
	if card.IsArchived() {
		return nil, ErrCardArchived
	}
	return card, nil
}

// targetColumn resolves a standard column of projectID, defaulting to the
// first one
func (s *service) targetColumn(ctx context.Context, q *database.Queries, projectID int, columnID *int) (int, error) {
	if columnID == nil {
		first, err := q.FirstColumn(ctx, projectID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return 0, ErrNoColumns
			}
			return 0, err
		}
		return first.ID, nil
	}

	col, err := q.GetColumnByID(ctx, *columnID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, ErrColumnNotInProject
		}
		return 0, err
	}
	if col.ProjectID != projectID {
		return 0, ErrColumnNotInProject
	}
	if col.IsArchive() {
		return 0, ErrInvalidColumnTarget
	}
	return col.ID, nil
}

func checkAssignee(ctx context.Context, q *database.Queries, projectID int, assigneeID *int) error {
	if assigneeID == nil {
		return nil
	}
	if _, err := q.GetMemberRole(ctx, projectID, *assigneeID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrAssigneeNotMember
		}
		return err
	}
	return nil
}

func checkStory(ctx context.Context, q *database.Queries, projectID int, storyID *int) error {
	if storyID == nil {
		return nil
	}
	st, err := q.GetStoryByID(ctx, *storyID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrStoryNotInProject
		}
		return err
	}
	if st.ProjectID != projectID {
		return ErrStoryNotInProject
	}
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

func sameID(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// notifyAssigned tells the new assignee, unless they assigned themselves
func (s *service) notifyAssigned(ctx context.Context, actorID int, card *models.Card) {
	if s.notifier == nil || card.AssigneeID == nil || *card.AssigneeID == actorID {
		return
	}
	actor, err := s.store.GetUserByID(ctx, actorID)
	if err != nil {
		s.logger.Warn("failed to load actor for notification", "user_id", actorID, "error", err)
		return
	}
	project, err := s.store.GetProjectByID(ctx, card.ProjectID)
	if err != nil {
		s.logger.Warn("failed to load project for notification", "project_id", card.ProjectID, "error", err)
		return
	}

	title, body := s.notifier.Copy().CardAssigned(actor.Name, card.Number, card.Title, project.Name)
	projectID := card.ProjectID
	if _, err := s.notifier.Notify(ctx, notification.NotifyRequest{
		UserID:    *card.AssigneeID,
		ProjectID: &projectID,
		Kind:      models.NotificationCardAssigned,
		Title:     title,
		Body:      body,
		Link:      cardLink(card),
		DedupeKey: "card:" + strconv.Itoa(card.ID) + ":assigned:" + strconv.Itoa(*card.AssigneeID) + ":" + strconv.FormatInt(card.UpdatedAt.UnixNano(), 10),
	}); err != nil {
		s.logger.Warn("failed to notify assignee", "card_id", card.ID, "error", err)
	}
}

func cardLink(card *models.Card) string {
	return "/projects/" + strconv.Itoa(card.ProjectID) + "/cards/" + strconv.Itoa(card.ID)
}

// publish sends a card event after a successful write
func (s *service) publish(eventType events.EventType, projectID, cardID int) {
	if s.eventClient == nil {
		return
	}
	if err := s.eventClient.SendEvent(events.Event{
		Type:      eventType,
		ProjectID: projectID,
		EntityID:  cardID,
	}); err != nil {
		s.logger.Warn("failed to send event", "card_id", cardID, "event_type", eventType, "error", err)
	}
}
