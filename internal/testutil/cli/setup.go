// Package cli prepares command contexts for CLI tests. It is separate from
// testutil so service tests do not import the cli package.
package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/thenoetrevino/tablero/internal/cli"
	"github.com/thenoetrevino/tablero/internal/config"
)

// SetupCLITest returns a context carrying a config whose database and blob
// directory live in a fresh temp dir. Every command run with it shares the
// same database file.
func SetupCLITest(t *testing.T, opts ...func(*cli.Options)) context.Context {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "tablero.db")
	cfg.Uploads.Dir = filepath.Join(dir, "blobs")
	cfg.Auth.BcryptCost = 4

	options := cli.Options{Config: cfg}
	for _, opt := range opts {
		opt(&options)
	}
	return cli.WithOptions(context.Background(), options)
}

// JSON switches the context to JSON output
func JSON(o *cli.Options) { o.JSON = true }

// Quiet switches the context to ID-only output
func Quiet(o *cli.Options) { o.Quiet = true }
