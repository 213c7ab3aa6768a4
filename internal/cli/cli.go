// Package cli holds the shared plumbing of tablero's commands: the
// application context, output formatting and exit codes.
package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/thenoetrevino/tablero/internal/app"
	"github.com/thenoetrevino/tablero/internal/config"
	"github.com/thenoetrevino/tablero/internal/database"
)

// CLI represents the CLI application context
type CLI struct {
	App    *app.App // Application container with services
	Config *config.Config
	db     *sql.DB
}

// NewCLI opens the database named by cfg and wires the services. Admin
// commands never serve sessions, so a missing JWT secret is tolerated.
func NewCLI(ctx context.Context, cfg *config.Config) (*CLI, error) {
	db, err := database.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	application, err := app.New(cfg, database.NewStore(db), app.WithEphemeralSecret())
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &CLI{
		App:    application,
		Config: cfg,
		db:     db,
	}, nil
}

// Close cleans up CLI resources
func (c *CLI) Close() error {
	if err := c.App.Close(); err != nil {
		return err
	}
	return c.db.Close()
}
