package comment

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

const maxBodyLength = 5000

// Service defines all comment-related business operations
type Service interface {
	ListComments(ctx context.Context, actorID, cardID int) ([]*models.Comment, error)
	AddComment(ctx context.Context, actorID, cardID int, body string) (*models.Comment, error)
	EditComment(ctx context.Context, actorID, commentID int, body string) (*models.Comment, error)
	DeleteComment(ctx context.Context, actorID, commentID int) error
}

type notifier interface {
	Notify(ctx context.Context, req notification.NotifyRequest) (*models.Notification, error)
	Copy() notification.Copy
}

type service struct {
	store       *database.Store
	eventClient events.EventPublisher
	notifier    notifier
	now         func() time.Time
	logger      *slog.Logger
}

// NewService creates a new comment service. eventClient and notifier may be nil.
func NewService(store *database.Store, eventClient events.EventPublisher, notifier notifier) Service {
	return &service{
		store:       store,
		eventClient: eventClient,
		notifier:    notifier,
		now:         time.Now,
		logger:      slog.Default().With("component", "comment"),
	}
}

// ListComments returns a card's comments, oldest first
func (s *service) ListComments(ctx context.Context, actorID, cardID int) ([]*models.Comment, error) {
	if _, err := s.memberCard(ctx, actorID, cardID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, cardID)
}

// AddComment posts a comment and notifies the card's assignee
func (s *service) AddComment(ctx context.Context, actorID, cardID int, body string) (*models.Comment, error) {
	body, err := validateBody(body)
	if err != nil {
		return nil, err
	}
	card, err := s.memberCard(ctx, actorID, cardID)
	if err != nil {
		return nil, err
	}

	c, err := s.store.CreateComment(ctx, cardID, actorID, body, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}

	s.publish(card.ProjectID, cardID)
	s.notifyAssignee(ctx, card, c)
	return c, nil
}

// EditComment replaces a comment's body. Only the author may edit.
func (s *service) EditComment(ctx context.Context, actorID, commentID int, body string) (*models.Comment, error) {
	body, err := validateBody(body)
	if err != nil {
		return nil, err
	}
	c, card, err := s.load(ctx, actorID, commentID)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != actorID {
		return nil, ErrNotAuthor
	}

	if err := s.store.UpdateComment(ctx, commentID, body, s.now()); err != nil {
		return nil, fmt.Errorf("failed to edit comment: %w", err)
	}
	updated, err := s.store.GetCommentByID(ctx, commentID)
	if err != nil {
		return nil, err
	}

	s.publish(card.ProjectID, card.ID)
	return updated, nil
}

// DeleteComment removes a comment (author or admin)
func (s *service) DeleteComment(ctx context.Context, actorID, commentID int) error {
	c, card, err := s.load(ctx, actorID, commentID)
	if err != nil {
		return err
	}
	if c.AuthorID != actorID {
		if _, err := access.RequireRole(ctx, s.store, card.ProjectID, actorID, models.RoleAdmin); err != nil {
			return err
		}
	}

	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	s.publish(card.ProjectID, card.ID)
	return nil
}

func validateBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	if utf8.RuneCountInString(body) > maxBodyLength {
		return "", ErrBodyTooLong
	}
	return body, nil
}

func (s *service) memberCard(ctx context.Context, actorID, cardID int) (*models.Card, error) {
	if cardID <= 0 {
		return nil, ErrInvalidCardID
	}
	card, err := s.store.GetCardByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	if _, err := access.RequireMember(ctx, s.store, card.ProjectID, actorID); err != nil {
		return nil, err
	}
	return card, nil
}

// load fetches a comment and its card, checking membership
func (s *service) load(ctx context.Context, actorID, commentID int) (*models.Comment, *models.Card, error) {
	if commentID <= 0 {
		return nil, nil, ErrInvalidCommentID
	}
	c, err := s.store.GetCommentByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, ErrCommentNotFound
		}
		return nil, nil, err
	}
	card, err := s.memberCard(ctx, actorID, c.CardID)
	if err != nil {
		return nil, nil, err
	}
	return c, card, nil
}

func (s *service) notifyAssignee(ctx context.Context, card *models.Card, c *models.Comment) {
	if s.notifier == nil || card.AssigneeID == nil || *card.AssigneeID == c.AuthorID {
		return
	}
	projectID := card.ProjectID
	if _, err := s.notifier.Notify(ctx, notification.NotifyRequest{
		UserID:    *card.AssigneeID,
		ProjectID: &projectID,
		Kind:      models.NotificationCardCommented,
		Title:     s.notifier.Copy().CardCommented(c.AuthorName, card.Number),
		Body:      c.Body,
		Link:      "/projects/" + strconv.Itoa(card.ProjectID) + "/cards/" + strconv.Itoa(card.ID),
		DedupeKey: "comment:" + strconv.Itoa(c.ID),
	}); err != nil {
		s.logger.Warn("failed to notify assignee", "card_id", card.ID, "comment_id", c.ID, "error", err)
	}
}

func (s *service) publish(projectID, cardID int) {
	if s.eventClient == nil {
		return
	}
	if err := s.eventClient.SendEvent(events.Event{
		Type:      events.EventCommentsChanged,
		ProjectID: projectID,
		EntityID:  cardID,
	}); err != nil {
		s.logger.Warn("failed to send event", "card_id", cardID, "error", err)
	}
}
