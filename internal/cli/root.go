package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the hermes command with config as the source of
// driver settings.
func NewRootCommand(config AppConfig) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hermes",
		Short: "Compile and run YAML query documents",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every statement to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewCompileCommand(opts, config))
	cmd.AddCommand(NewRunCommand(opts, config))

	return cmd
}

func (opts *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if !opts.Verbose {
		return slog.New(slog.DiscardHandler)
	}

	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
}
