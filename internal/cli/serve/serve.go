// Package serve runs the HTTP server
//
// e.g., tablero serve
package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/thenoetrevino/tablero/internal/app"
	"github.com/thenoetrevino/tablero/internal/cli"
	"github.com/thenoetrevino/tablero/internal/config"
	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/logging"
	"github.com/thenoetrevino/tablero/internal/web"
	"golang.org/x/sync/errgroup"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Long: `Run the REST API, live event streams and the background sweeper.

The server stops gracefully on SIGINT, SIGTERM or SIGQUIT. Changes to
log.level in the config file apply without a restart.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (overrides http.addr)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	opts := cli.OptionsFromContext(cmd.Context())
	if opts.Config == nil {
		return cli.ErrNoConfig
	}
	cfg := opts.Config

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return cli.DataError{Err: err}
	}
	maxUpload, err := cfg.Uploads.MaxBytes()
	if err != nil {
		return cli.DataError{Err: err}
	}

	if !cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	db, err := database.Open(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}()

	application, err := app.New(cfg, database.NewStore(db))
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			slog.Error("error closing app", "error", err)
		}
	}()

	server := web.NewServer(web.Config{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		StaticDir:       cfg.HTTP.StaticDir,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		MaxUploadBytes:  maxUpload,
	}, application)

	slog.Info("tablero starting",
		"addr", cfg.HTTP.Addr,
		"database", cfg.Database.Path,
		"dev", cfg.Dev,
		"pid", os.Getpid())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return application.Hub.Run(ctx) })
	g.Go(func() error { return server.Run(ctx) })
	g.Go(func() error { return application.RunSweeper(ctx, cfg.Invitations.SweepInterval) })
	if opts.ConfigPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, opts.ConfigPath, reload)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	slog.Info("tablero shut down gracefully")
	return nil
}

// reload applies the settings that can change while running
func reload(next *config.Config) {
	if err := logging.SetLevel(next.Log.Level); err != nil {
		slog.Warn("ignoring log level from reloaded config", "error", err)
		return
	}
	slog.Info("config reloaded", "log_level", logging.Level().String())
}
