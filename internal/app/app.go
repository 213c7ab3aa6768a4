package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/thenoetrevino/tablero/internal/auth"
	"github.com/thenoetrevino/tablero/internal/blobstore"
	"github.com/thenoetrevino/tablero/internal/config"
	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/mail"
	attachmentservice "github.com/thenoetrevino/tablero/internal/services/attachment"
	cardservice "github.com/thenoetrevino/tablero/internal/services/card"
	columnservice "github.com/thenoetrevino/tablero/internal/services/column"
	commentservice "github.com/thenoetrevino/tablero/internal/services/comment"
	invitationservice "github.com/thenoetrevino/tablero/internal/services/invitation"
	labelservice "github.com/thenoetrevino/tablero/internal/services/label"
	notificationservice "github.com/thenoetrevino/tablero/internal/services/notification"
	projectservice "github.com/thenoetrevino/tablero/internal/services/project"
	storyservice "github.com/thenoetrevino/tablero/internal/services/story"
	timeservice "github.com/thenoetrevino/tablero/internal/services/timetracking"
	userservice "github.com/thenoetrevino/tablero/internal/services/user"
)

// App holds all application services and provides dependency injection.
// This is the main application container that manages service lifecycles.
type App struct {
	cfg    *config.Config
	store  *database.Store
	logger *slog.Logger

	// Hub fans out change events; serve runs it
	Hub    *events.Hub
	Blobs  *blobstore.Store
	Mailer mail.Mailer
	Tokens *auth.TokenManager

	// Service layer (business logic)
	Users         userservice.Service
	Projects      projectservice.Service
	Columns       columnservice.Service
	Cards         cardservice.Service
	Stories       storyservice.Service
	Labels        labelservice.Service
	Comments      commentservice.Service
	Invitations   invitationservice.Service
	Time          timeservice.Service
	Notifications notificationservice.Service
	Attachments   attachmentservice.Service
}

// New creates a new App with all services initialized.
// This is the single entry point for creating the application container.
func New(cfg *config.Config, store *database.Store, opts ...Option) (*App, error) {
	ac := &appConfig{now: time.Now}
	for _, opt := range opts {
		opt(ac)
	}
	if ac.logger == nil {
		ac.logger = slog.Default()
	}

	a := &App{
		cfg:    cfg,
		store:  store,
		logger: ac.logger.With("component", "app"),
	}

	a.Hub = events.NewHub(events.HubConfig{
		BroadcastBuffer:   cfg.Events.BroadcastBuffer,
		ClientBuffer:      cfg.Events.ClientBuffer,
		HeartbeatInterval: cfg.Events.HeartbeatInterval,
	}, ac.logger)
	publisher := ac.eventClient
	if publisher == nil {
		publisher = a.Hub
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" && (cfg.Dev || ac.ephemeralSecret) {
		secret = uuid.NewString()
		if cfg.Dev {
			a.logger.Warn("no jwt secret configured, using an ephemeral one (dev mode)")
		}
	}
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret: secret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.TokenTTL,
		Now:    ac.now,
	})
	if err != nil {
		return nil, err
	}
	a.Tokens = tokens

	a.Mailer = ac.mailer
	if a.Mailer == nil {
		a.Mailer, err = mail.New(mail.Config{
			Driver:   cfg.Mail.Driver,
			From:     cfg.Mail.From,
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
		}, ac.logger)
		if err != nil {
			return nil, err
		}
	}

	a.Blobs, err = blobstore.New(cfg.Uploads.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	maxBytes, err := cfg.Uploads.MaxBytes()
	if err != nil {
		return nil, err
	}

	notifyOpts := []notificationservice.Option{notificationservice.WithClock(ac.now)}
	if cfg.Mail.Notify {
		notifyOpts = append(notifyOpts, notificationservice.WithMailer(a.Mailer))
	}
	a.Notifications = notificationservice.NewService(store, publisher, notifyOpts...)

	a.Users = userservice.NewService(store, tokens, cfg.Auth.BcryptCost)
	a.Projects = projectservice.NewService(store, publisher, a.Notifications)
	a.Columns = columnservice.NewService(store, publisher)
	a.Cards = cardservice.NewService(store, publisher, a.Columns, a.Notifications)
	a.Stories = storyservice.NewService(store, publisher)
	a.Labels = labelservice.NewService(store, publisher)
	a.Comments = commentservice.NewService(store, publisher, a.Notifications)
	a.Invitations = invitationservice.NewService(store, publisher, a.Notifications, a.Mailer,
		invitationservice.Config{TTL: cfg.Invitations.TTL, BaseURL: cfg.Invitations.BaseURL},
		invitationservice.WithClock(ac.now))
	a.Time = timeservice.NewService(store, publisher, timeservice.WithClock(ac.now))
	a.Attachments = attachmentservice.NewService(store, a.Blobs, publisher,
		attachmentservice.Config{MaxBytes: maxBytes})

	return a, nil
}

// Store returns the underlying store for direct database access
func (a *App) Store() *database.Store {
	return a.store
}

// Config returns the configuration the app was built from
func (a *App) Config() *config.Config {
	return a.cfg
}

// Sweep purges long-expired invitations and unreferenced blobs
func (a *App) Sweep(ctx context.Context) error {
	purged, err := a.Invitations.PurgeExpired(ctx, a.cfg.Invitations.PurgeAfter)
	if err != nil {
		return fmt.Errorf("failed to purge invitations: %w", err)
	}
	removed, err := a.Attachments.CollectGarbage(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect blobs: %w", err)
	}
	if purged > 0 || removed > 0 {
		a.logger.Info("sweep finished", "invitations_purged", purged, "blobs_removed", removed)
	}
	return nil
}

// RunSweeper calls Sweep every interval until ctx is cancelled. A
// non-positive interval disables sweeping.
func (a *App) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.Sweep(ctx); err != nil {
				a.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// Close performs cleanup of application resources
func (a *App) Close() error {
	a.Hub.Shutdown()
	return nil
}
