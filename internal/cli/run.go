package cli

import (
	"fmt"

	"github.com/lunagic/hermes/hermes"
	"github.com/lunagic/hermes/hermesservices/database"
	"github.com/spf13/cobra"
)

type RunOptions struct {
	*RootOptions
	Export string
}

// NewRunCommand executes a query document against the configured database.
func NewRunCommand(rootOpts *RootOptions, config AppConfig) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "run <query.yaml>",
		Short:         "Run a query document against the database",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts, config, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Export, "export", "", "write the rows as JSON lines to this storage path")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions, config AppConfig, filePath string) error {
	ctx := cmd.Context()

	root, err := LoadDocument(filePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading query", err)
	}

	configFuncs := []database.ServiceConfigFunc{
		database.WithLogger(opts.logger(cmd)),
	}

	if config.AppStatementCacheSize > 0 {
		configFuncs = append(configFuncs, database.WithStatementCache(config.AppStatementCacheSize))
	}

	cacheDriver, err := config.Cache()
	if err != nil {
		return WrapExitError(ExitCommandError, "opening cache", err)
	}

	if cacheDriver != nil {
		configFuncs = append(configFuncs, database.WithResultCache(cacheDriver, config.ResultCacheTTL()))
	}

	queryLog, err := config.QueryLog(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening query log", err)
	}

	if queryLog != nil {
		configFuncs = append(configFuncs, database.WithQueryLog(queryLog))
	}

	service, err := config.Database(configFuncs...)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening database", err)
	}
	defer service.Close()

	q, err := BuildQuery(root, func() *hermes.Query {
		return service.NewQuery()
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "building query", err)
	}

	result, err := q.Execute(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "running query", err)
	}

	out := cmd.OutOrStdout()

	if opts.Export != "" {
		driver, err := config.Storage()
		if err != nil {
			return WrapExitError(ExitCommandError, "opening storage", err)
		}

		count, err := database.Export(ctx, driver, opts.Export, result)
		if err != nil {
			return WrapExitError(ExitFailure, "exporting rows", err)
		}

		_, err = fmt.Fprintf(out, "exported %d row(s) to %s\n", count, opts.Export)
		return err
	}

	rows := result.FetchAll()
	if q.Type() != hermes.StatementSelect && len(rows) == 0 {
		_, err = fmt.Fprintf(out, "%d row(s) affected\n", result.RowCount())
		return err
	}

	return writeRows(out, opts.Format, rows)
}
