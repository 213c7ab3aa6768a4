package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/language"

	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/mail"
	"github.com/thenoetrevino/tablero/internal/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Service defines the inbox operations
type Service interface {
	// Notify delivers a notification. With a dedupe key, a second call for
	// the same user and key returns the stored notification unchanged.
	Notify(ctx context.Context, req NotifyRequest) (*models.Notification, error)

	List(ctx context.Context, userID int, opts ListOptions) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID int) (int, error)
	MarkRead(ctx context.Context, userID, id int) error
	MarkAllRead(ctx context.Context, userID int) (int64, error)

	// Copy renders notification text for other services
	Copy() Copy
}

// NotifyRequest describes one notification
type NotifyRequest struct {
	UserID    int
	ProjectID *int
	Kind      models.NotificationKind
	Title     string
	Body      string
	Link      string
	DedupeKey string
}

// ListOptions pages through an inbox
type ListOptions struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// Option customises the service
type Option func(*service)

// WithMailer emails every new notification to its recipient
func WithMailer(m mail.Mailer) Option {
	return func(s *service) { s.mailer = m }
}

// WithLanguage selects the language notification copy is rendered in
func WithLanguage(tag language.Tag) Option {
	return func(s *service) { s.copy = NewCopy(tag) }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

type service struct {
	store       *database.Store
	eventClient events.EventPublisher
	mailer      mail.Mailer
	copy        Copy
	now         func() time.Time
	logger      *slog.Logger
}

// NewService creates a notification service. eventClient may be nil.
func NewService(store *database.Store, eventClient events.EventPublisher, opts ...Option) Service {
	s := &service{
		store:       store,
		eventClient: eventClient,
		copy:        NewCopy(language.English),
		now:         time.Now,
		logger:      slog.Default().With("component", "notification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Copy() Copy {
	return s.copy
}

func (s *service) Notify(ctx context.Context, req NotifyRequest) (*models.Notification, error) {
	if req.UserID <= 0 {
		return nil, ErrInvalidUserID
	}
	if req.Kind == "" {
		return nil, ErrInvalidKind
	}
	if req.Title == "" {
		return nil, ErrEmptyTitle
	}

	if req.DedupeKey != "" {
		existing, err := s.store.GetNotificationByDedupeKey(ctx, req.UserID, req.DedupeKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("failed to check notification dedupe key: %w", err)
		}
	}

	n, err := s.store.CreateNotification(ctx, &models.Notification{
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		Kind:      req.Kind,
		Title:     req.Title,
		Body:      req.Body,
		Link:      req.Link,
		DedupeKey: req.DedupeKey,
		CreatedAt: s.now(),
	})
	if err != nil {
		// A concurrent Notify with the same key won the insert
		if req.DedupeKey != "" && database.IsUniqueViolation(err) {
			return s.store.GetNotificationByDedupeKey(ctx, req.UserID, req.DedupeKey)
		}
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	s.publish(ctx, n)
	s.email(ctx, n)
	return n, nil
}

func (s *service) List(ctx context.Context, userID int, opts ListOptions) ([]*models.Notification, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}
	limit := opts.Limit
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	offset := max(opts.Offset, 0)
	return s.store.ListNotifications(ctx, userID, opts.UnreadOnly, limit, offset)
}

func (s *service) UnreadCount(ctx context.Context, userID int) (int, error) {
	if userID <= 0 {
		return 0, ErrInvalidUserID
	}
	return s.store.CountUnreadNotifications(ctx, userID)
}

// MarkRead marks one of the user's notifications read. Marking another
// user's notification reports not found.
func (s *service) MarkRead(ctx context.Context, userID, id int) error {
	err := s.store.MarkNotificationRead(ctx, userID, id, s.now())
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

func (s *service) MarkAllRead(ctx context.Context, userID int) (int64, error) {
	if userID <= 0 {
		return 0, ErrInvalidUserID
	}
	return s.store.MarkAllNotificationsRead(ctx, userID, s.now())
}

// publishRetries bounds attempts while the hub's broadcast queue is full
const publishRetries = 3

// publish pushes the notification to the recipient's live stream
func (s *service) publish(ctx context.Context, n *models.Notification) {
	if s.eventClient == nil {
		return
	}
	ev := events.Event{
		Type:     events.EventNotificationCreated,
		UserID:   n.UserID,
		EntityID: n.ID,
	}
	if n.ProjectID != nil {
		ev.ProjectID = *n.ProjectID
	}
	if err := events.PublishWithRetry(ctx, s.eventClient, ev, publishRetries); err != nil {
		s.logger.Warn("failed to publish notification", "notification_id", n.ID, "user_id", n.UserID, "error", err)
	}
}

// email sends the notification when a mailer is configured. Failures are
// logged only.
func (s *service) email(ctx context.Context, n *models.Notification) {
	if s.mailer == nil {
		return
	}
	u, err := s.store.GetUserByID(ctx, n.UserID)
	if err != nil {
		s.logger.Warn("failed to load notification recipient", "user_id", n.UserID, "error", err)
		return
	}
	msg, err := mail.RenderNotification(mail.NotificationData{
		To:    u.Email,
		Name:  u.Name,
		Title: n.Title,
		Body:  n.Body,
		Link:  n.Link,
	})
	if err != nil {
		s.logger.Error("failed to render notification email", "notification_id", n.ID, "error", err)
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("failed to send notification email", "notification_id", n.ID, "error", err)
	}
}
