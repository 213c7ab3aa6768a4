package app

import (
	"log/slog"
	"time"

	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/mail"
)

// Option is a functional option for configuring App initialization
type Option func(*appConfig)

// appConfig holds the configuration for App initialization
type appConfig struct {
	eventClient events.EventPublisher
	mailer      mail.Mailer
	logger      *slog.Logger
	now         func() time.Time

	ephemeralSecret bool
}

// WithEventPublisher replaces the hub as the services' event publisher
func WithEventPublisher(ec events.EventPublisher) Option {
	return func(cfg *appConfig) {
		cfg.eventClient = ec
	}
}

// WithMailer sets the mailer instead of building one from config
func WithMailer(m mail.Mailer) Option {
	return func(cfg *appConfig) {
		cfg.mailer = m
	}
}

// WithLogger sets the logger for the application
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *appConfig) {
		cfg.logger = logger
	}
}

// WithClock overrides time.Now for services that stamp times
func WithClock(now func() time.Time) Option {
	return func(cfg *appConfig) {
		cfg.now = now
	}
}

// WithEphemeralSecret allows a missing JWT secret outside dev mode. Tokens
// issued by such an App die with the process; admin commands use it.
func WithEphemeralSecret() Option {
	return func(cfg *appConfig) {
		cfg.ephemeralSecret = true
	}
}
