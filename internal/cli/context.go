package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/thenoetrevino/tablero/internal/config"
)

// Options are the root command's persistent flags plus the loaded config
type Options struct {
	Config     *config.Config
	ConfigPath string // empty when no file was found
	JSON       bool
	Quiet      bool
}

type optionsKey struct{}

// ErrNoConfig means a command ran without the root command's setup
var ErrNoConfig = errors.New("configuration was not loaded")

// WithOptions stores opts for subcommands
func WithOptions(ctx context.Context, opts Options) context.Context {
	return context.WithValue(ctx, optionsKey{}, opts)
}

// OptionsFromContext returns the options stored by WithOptions
func OptionsFromContext(ctx context.Context) Options {
	opts, _ := ctx.Value(optionsKey{}).(Options)
	return opts
}

// Formatter builds an OutputFormatter from the stored flags that writes to
// the command's streams
func Formatter(cmd *cobra.Command) *OutputFormatter {
	opts := OptionsFromContext(cmd.Context())
	return &OutputFormatter{
		JSON:  opts.JSON,
		Quiet: opts.Quiet,
		Out:   cmd.OutOrStdout(),
		Err:   cmd.ErrOrStderr(),
	}
}

// GetCLIFromContext opens a CLI using the stored configuration
func GetCLIFromContext(ctx context.Context) (*CLI, error) {
	opts := OptionsFromContext(ctx)
	if opts.Config == nil {
		return nil, ErrNoConfig
	}
	return NewCLI(ctx, opts.Config)
}
