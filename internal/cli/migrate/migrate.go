// Package migrate creates or upgrades the database schema
//
// e.g., tablero migrate
package migrate

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/thenoetrevino/tablero/internal/cli"
	"github.com/thenoetrevino/tablero/internal/cli/styles"
	"github.com/thenoetrevino/tablero/internal/database"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Long: `Apply the schema to the configured database and merge duplicate
archive columns. serve does the same on start; run this to prepare a
database ahead of time.`,
		Args: cobra.NoArgs,
		RunE: runMigrate,
	}
}

type migrateResult struct {
	Path string `json:"path"`
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	formatter := cli.Formatter(cmd)

	opts := cli.OptionsFromContext(ctx)
	if opts.Config == nil {
		return cli.ErrNoConfig
	}
	path := opts.Config.Database.Path

	db, err := database.Open(ctx, path)
	if err != nil {
		if fmtErr := formatter.Error("MIGRATION_ERROR", err.Error()); fmtErr != nil {
			slog.Error("error formatting error message", "error", fmtErr)
		}
		return cli.Reported(err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return formatter.Render(migrateResult{Path: path}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s Database is up to date\n  %s\n",
			styles.SuccessStyle.Render("✓"), styles.Field("Path", path))
		return err
	})
}
