package cli

import (
	"github.com/lunagic/hermes/hermes"
	"github.com/spf13/cobra"
)

type CompileOptions struct {
	*RootOptions
	Dialect string
}

// NewCompileCommand prints the SQL and bindings of a query document
// without connecting to a database.
func NewCompileCommand(rootOpts *RootOptions, config AppConfig) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "compile <query.yaml>",
		Short:         "Compile a query document to SQL",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, opts, config, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Dialect, "dialect", "d", config.AppDriverDatabase, "dialect to compile for (standard|sqlite|mysql|postgres)")

	return cmd
}

func runCompile(cmd *cobra.Command, opts *CompileOptions, config AppConfig, filePath string) error {
	dialect, err := config.Dialect(opts.Dialect)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolving dialect", err)
	}

	root, err := LoadDocument(filePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading query", err)
	}

	q, err := BuildQuery(root, func() *hermes.Query {
		return hermes.NewQuery(nil, hermes.WithDialect(dialect))
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "building query", err)
	}

	statement, err := q.Compile()
	if err != nil {
		return WrapExitError(ExitFailure, "compiling query", err)
	}

	return writeStatement(cmd.OutOrStdout(), opts.Format, statement)
}
