// Package invitation lets project admins invite people by email.
//
// Tokens are random UUIDs handed out once in the accept link. Only their
// blake3 hash is stored.
package invitation

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/mail"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/access"
	"github.com/thenoetrevino/tablero/internal/services/notification"
	"github.com/thenoetrevino/tablero/internal/services/user"
)

// Service defines all invitation-related business operations
type Service interface {
	CreateInvitation(ctx context.Context, req CreateInvitationRequest) (*Created, error)
	ListInvitations(ctx context.Context, actorID, projectID int) ([]*Listed, error)
	RevokeInvitation(ctx context.Context, actorID, invitationID int) error

	LookupInvitation(ctx context.Context, token string) (*models.InvitationPreview, error)
	AcceptInvitation(ctx context.Context, actorID int, token string) (*models.Project, error)

	PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Config controls invitation lifetime and accept links
type Config struct {
	TTL     time.Duration
	BaseURL string
}

func (c *Config) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = 7 * 24 * time.Hour
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// CreateInvitationRequest encapsulates data for inviting someone
type CreateInvitationRequest struct {
	ActorID   int
	ProjectID int
	Email     string
	Role      models.Role // member or admin; empty = member
}

// Created is a freshly issued invitation. Token is only available here.
type Created struct {
	*models.Invitation
	Token     string `json:"token"`
	AcceptURL string `json:"accept_url"`
}

// Listed is an invitation with its computed status
type Listed struct {
	*models.Invitation
	Status models.InvitationStatus `json:"status"`
}

type notifier interface {
	Notify(ctx context.Context, req notification.NotifyRequest) (*models.Notification, error)
	Copy() notification.Copy
}

// Option configures the service
type Option func(*service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

type service struct {
	store       *database.Store
	eventClient events.EventPublisher
	notifier    notifier
	mailer      mail.Mailer
	cfg         Config
	now         func() time.Time
	newToken    func() string
	logger      *slog.Logger
}

// NewService creates a new invitation service. eventClient, notifier and
// mailer may be nil.
func NewService(store *database.Store, eventClient events.EventPublisher, notifier notifier, mailer mail.Mailer, cfg Config, opts ...Option) Service {
	cfg.applyDefaults()
	s := &service{
		store:       store,
		eventClient: eventClient,
		notifier:    notifier,
		mailer:      mailer,
		cfg:         cfg,
		now:         time.Now,
		newToken:    uuid.NewString,
		logger:      slog.Default().With("component", "invitation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// hashToken returns the stored form of an invitation token
func hashToken(token string) string {
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ============================================================================
// Admin operations
// ============================================================================

// CreateInvitation invites email to a project. An open invitation for the
// same address is refreshed with a new token and expiry instead.
func (s *service) CreateInvitation(ctx context.Context, req CreateInvitationRequest) (*Created, error) {
	email := user.NormalizeEmail(req.Email)
	if !user.ValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}
	if req.Role != models.RoleMember && req.Role != models.RoleAdmin {
		return nil, ErrInvalidRole
	}
	if req.ProjectID <= 0 {
		return nil, ErrInvalidProjectID
	}
	if _, err := access.RequireRole(ctx, s.store, req.ProjectID, req.ActorID, models.RoleAdmin); err != nil {
		return nil, err
	}

	token := s.newToken()
	now := s.now()
	expiresAt := now.Add(s.cfg.TTL)

	var inv *models.Invitation
	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		if err := ensureNotMember(ctx, q, req.ProjectID, email); err != nil {
			return err
		}

		open, err := q.GetOpenInvitation(ctx, req.ProjectID, email)
		switch {
		case err == nil:
			if err := q.RefreshInvitation(ctx, open.ID, req.Role, hashToken(token), req.ActorID, expiresAt); err != nil {
				return err
			}
			inv, err = q.GetInvitationByID(ctx, open.ID)
			return err
		case !errors.Is(err, database.ErrNotFound):
			return err
		}

		inv, err = q.CreateInvitation(ctx, &models.Invitation{
			ProjectID: req.ProjectID,
			Email:     email,
			Role:      req.Role,
			TokenHash: hashToken(token),
			InvitedBy: req.ActorID,
			ExpiresAt: expiresAt,
			CreatedAt: now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	created := &Created{
		Invitation: inv,
		Token:      token,
		AcceptURL:  s.cfg.BaseURL + "/invitations/" + token,
	}
	s.sendEmail(ctx, created, now)
	return created, nil
}

func ensureNotMember(ctx context.Context, q *database.Queries, projectID int, email string) error {
	u, err := q.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = q.GetMemberRole(ctx, projectID, u.ID)
	switch {
	case err == nil:
		return ErrAlreadyMember
	case errors.Is(err, database.ErrNotFound):
		return nil
	default:
		return err
	}
}

// ListInvitations returns a project's invitations newest first
func (s *service) ListInvitations(ctx context.Context, actorID, projectID int) ([]*Listed, error) {
	if projectID <= 0 {
		return nil, ErrInvalidProjectID
	}
	if _, err := access.RequireRole(ctx, s.store, projectID, actorID, models.RoleAdmin); err != nil {
		return nil, err
	}
	invitations, err := s.store.ListInvitations(ctx, projectID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	listed := make([]*Listed, len(invitations))
	for i, inv := range invitations {
		listed[i] = &Listed{Invitation: inv, Status: inv.Status(now)}
	}
	return listed, nil
}

// RevokeInvitation cancels an invitation that has not been accepted
func (s *service) RevokeInvitation(ctx context.Context, actorID, invitationID int) error {
	inv, err := s.store.GetInvitationByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrInvitationNotFound
		}
		return err
	}
	if _, err := access.RequireRole(ctx, s.store, inv.ProjectID, actorID, models.RoleAdmin); err != nil {
		return err
	}

	switch inv.Status(s.now()) {
	case models.InvitationAccepted:
		return ErrInvitationUsed
	case models.InvitationRevoked:
		return ErrInvitationRevoked
	}
	if err := s.store.RevokeInvitation(ctx, inv.ID, s.now()); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrInvitationUsed
		}
		return err
	}
	return nil
}

// PurgeExpired deletes unaccepted invitations that expired more than
// olderThan ago
func (s *service) PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.store.DeleteExpiredInvitations(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("purged expired invitations", "count", n)
	}
	return n, nil
}

// ============================================================================
// Invitee operations
// ============================================================================

// LookupInvitation previews an invitation without accepting it
func (s *service) LookupInvitation(ctx context.Context, token string) (*models.InvitationPreview, error) {
	inv, err := s.byToken(ctx, s.store.Queries, token)
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProjectByID(ctx, inv.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invited project: %w", err)
	}
	return &models.InvitationPreview{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Email:       inv.Email,
		Role:        inv.Role,
		ExpiresAt:   inv.ExpiresAt,
		Status:      inv.Status(s.now()),
	}, nil
}

// AcceptInvitation makes the actor a member of the invited project
func (s *service) AcceptInvitation(ctx context.Context, actorID int, token string) (*models.Project, error) {
	now := s.now()
	var (
		inv     *models.Invitation
		project *models.Project
		actor   *models.User
	)
	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		var err error
		if inv, err = s.byToken(ctx, q, token); err != nil {
			return err
		}
		switch inv.Status(now) {
		case models.InvitationAccepted:
			return ErrInvitationUsed
		case models.InvitationRevoked:
			return ErrInvitationRevoked
		case models.InvitationExpired:
			return ErrInvitationExpired
		}

		if actor, err = q.GetUserByID(ctx, actorID); err != nil {
			return fmt.Errorf("failed to load user %d: %w", actorID, err)
		}
		if user.NormalizeEmail(actor.Email) != inv.Email {
			return ErrEmailMismatch
		}
		if _, err := q.GetMemberRole(ctx, inv.ProjectID, actorID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, database.ErrNotFound) {
			return err
		}

		if err := q.AddMember(ctx, inv.ProjectID, actorID, inv.Role, now); err != nil {
			return err
		}
		if err := q.MarkInvitationAccepted(ctx, inv.ID, actorID, now); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return ErrInvitationUsed
			}
			return err
		}
		project, err = q.GetProjectByID(ctx, inv.ProjectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invitation accepted", "project_id", project.ID, "user_id", actorID, "role", inv.Role)
	if s.eventClient != nil {
		if err := s.eventClient.SendEvent(events.Event{Type: events.EventMembersChanged, ProjectID: project.ID}); err != nil {
			s.logger.Warn("failed to send event", "project_id", project.ID, "error", err)
		}
	}
	s.notifyInviter(ctx, inv, actor, project)
	return project, nil
}

func (s *service) byToken(ctx context.Context, q *database.Queries, token string) (*models.Invitation, error) {
	token = strings.TrimSpace(token)
	if _, err := uuid.Parse(token); err != nil {
		return nil, ErrInvalidToken
	}
	inv, err := q.GetInvitationByTokenHash(ctx, hashToken(token))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvitationNotFound
	}
	return inv, err
}

func (s *service) notifyInviter(ctx context.Context, inv *models.Invitation, actor *models.User, project *models.Project) {
	if s.notifier == nil || inv.InvitedBy == actor.ID {
		return
	}
	title, body := s.notifier.Copy().InvitationAccepted(actor.Name, project.Name, string(inv.Role))
	projectID := project.ID
	if _, err := s.notifier.Notify(ctx, notification.NotifyRequest{
		UserID:    inv.InvitedBy,
		ProjectID: &projectID,
		Kind:      models.NotificationInvitationAccepted,
		Title:     title,
		Body:      body,
		Link:      "/projects/" + strconv.Itoa(project.ID) + "/members",
		DedupeKey: "invitation:" + strconv.Itoa(inv.ID) + ":accepted",
	}); err != nil {
		s.logger.Warn("failed to notify inviter", "invitation_id", inv.ID, "error", err)
	}
}

// sendEmail delivers the accept link. Failures are logged; the invitation
// stays valid and can be re-sent by inviting again.
func (s *service) sendEmail(ctx context.Context, created *Created, now time.Time) {
	if s.mailer == nil {
		return
	}
	project, err := s.store.GetProjectByID(ctx, created.ProjectID)
	if err != nil {
		s.logger.Warn("failed to load project for invitation email", "project_id", created.ProjectID, "error", err)
		return
	}
	inviterName := ""
	if inviter, err := s.store.GetUserByID(ctx, created.InvitedBy); err == nil {
		inviterName = inviter.Name
	}

	msg, err := mail.RenderInvitation(mail.InvitationData{
		To:          created.Email,
		ProjectName: project.Name,
		InviterName: inviterName,
		Role:        string(created.Role),
		AcceptURL:   created.AcceptURL,
		ExpiresAt:   created.ExpiresAt,
		Now:         now,
	})
	if err != nil {
		s.logger.Error("failed to render invitation email", "invitation_id", created.ID, "error", err)
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("failed to send invitation email", "invitation_id", created.ID, "to", created.Email, "error", err)
	}
}
