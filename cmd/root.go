// Package cmd assembles the tablero command tree
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/thenoetrevino/tablero/internal/cli"
	"github.com/thenoetrevino/tablero/internal/cli/migrate"
	"github.com/thenoetrevino/tablero/internal/cli/project"
	"github.com/thenoetrevino/tablero/internal/cli/serve"
	"github.com/thenoetrevino/tablero/internal/cli/user"
	"github.com/thenoetrevino/tablero/internal/config"
	"github.com/thenoetrevino/tablero/internal/logging"
)

// logCloser releases the log file opened in PersistentPreRunE
var logCloser io.Closer

// NewRootCmd builds the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tablero",
		Short: "Tablero - a collaborative kanban server",
		Long: `Tablero serves shared kanban boards over a REST API with live updates.

Run 'tablero serve' to start the server. The user and project commands
administer the same database directly.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				_ = logCloser.Close()
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (default $XDG_CONFIG_HOME/tablero/config.yaml)")
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().Bool("quiet", false, "Minimal output (IDs only)")

	rootCmd.AddCommand(serve.ServeCmd())
	rootCmd.AddCommand(migrate.MigrateCmd())
	rootCmd.AddCommand(user.UserCmd())
	rootCmd.AddCommand(project.ProjectCmd())

	return rootCmd
}

// setup loads the configuration, starts logging and hands both to the
// subcommand through its context
func setup(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	quiet, _ := cmd.Flags().GetBool("quiet")

	cfg, err := config.Load(path)
	if err != nil {
		return cli.DataError{Err: err}
	}

	closer, err := logging.Init(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return cli.DataError{Err: fmt.Errorf("failed to initialize logging: %w", err)}
	}
	logCloser = closer

	cmd.SetContext(cli.WithOptions(cmd.Context(), cli.Options{
		Config:     cfg,
		ConfigPath: resolveConfigPath(path),
		JSON:       jsonOutput,
		Quiet:      quiet,
	}))
	return nil
}

// resolveConfigPath returns the file serve should watch, or "" when there
// is none
func resolveConfigPath(path string) string {
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return ""
		}
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Execute runs the command tree and returns the process exit code
func Execute() int {
	err := NewRootCmd().Execute()
	if err == nil {
		return cli.ExitSuccess
	}

	if !cli.IsReported(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	slog.Debug("command failed", "error", err)
	return cli.ExitCode(err)
}
