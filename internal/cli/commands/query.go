package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/strata/internal/cli/output"
	"github.com/leapstack-labs/strata/internal/engine"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Query result formats.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Query the target database",
		Long: `Run SQL against the configured target and print the result.

The statement comes from the arguments, the --input file or piped stdin.
When invoked without any of them on a terminal, an interactive REPL starts.

The format follows --output unless --format is given: json for json,
md for markdown, table otherwise.`,
		Example: `  # Inspect a materialized model
  strata query "SELECT * FROM customer_orders LIMIT 10"

  # List relations in the target
  strata query tables

  # Show the columns of a relation
  strata query schema stg_orders

  # CSV for scripts
  strata query "SELECT * FROM stg_orders" --format csv

  # Interactive mode
  strata query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Result format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{FormatTable, FormatJSON, FormatCSV, FormatMarkdown}, cobra.ShellCompDirectiveNoFileComp
	})

	cmd.AddCommand(newQueryTablesCommand(opts))
	cmd.AddCommand(newQuerySchemaCommand(opts))

	return cmd
}

// resolveFormat picks the result format from --format or the output mode.
func resolveFormat(flag string, r *output.Renderer) (string, error) {
	switch strings.ToLower(flag) {
	case FormatTable, FormatJSON, FormatCSV:
		return strings.ToLower(flag), nil
	case FormatMarkdown, "markdown":
		return FormatMarkdown, nil
	case "":
	default:
		return "", fmt.Errorf("invalid format %q: must be one of table, json, csv, md", flag)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return FormatJSON, nil
	case output.ModeMarkdown:
		return FormatMarkdown, nil
	default:
		return FormatTable, nil
	}
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	format, err := resolveFormat(opts.Format, cmdCtx.Renderer)
	if err != nil {
		return err
	}

	var sqlQuery string
	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !stdinIsTerminal(cmd):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	default:
		return runQueryREPL(cmd, cmdCtx, format)
	}

	sqlQuery = strings.TrimSuffix(strings.TrimSpace(sqlQuery), ";")
	if sqlQuery == "" {
		return fmt.Errorf("no SQL given")
	}
	return executeAndRender(cmd.Context(), cmd.OutOrStdout(), cmdCtx.Engine, sqlQuery, format)
}

func executeAndRender(ctx context.Context, w io.Writer, eng *engine.Engine, sqlQuery, format string) error {
	rows, err := eng.Query(ctx, sqlQuery)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	rs, err := collectRows(rows.Rows)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return rs.render(w, format)
}

// newQueryTablesCommand creates the tables subcommand.
func newQueryTablesCommand(opts *QueryOptions) *cobra.Command {
	var viewsOnly bool
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List tables and views in the target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			format, err := resolveFormat(opts.Format, cmdCtx.Renderer)
			if err != nil {
				return err
			}
			return executeAndRender(cmd.Context(), cmd.OutOrStdout(), cmdCtx.Engine, relationsQuery(viewsOnly), format)
		},
	}
	cmd.Flags().BoolVar(&viewsOnly, "views", false, "List views only")
	return cmd
}

// newQuerySchemaCommand creates the schema subcommand.
func newQuerySchemaCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <relation>",
		Short: "Show the columns of a table or view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			format, err := resolveFormat(opts.Format, cmdCtx.Renderer)
			if err != nil {
				return err
			}
			return showSchema(cmd.Context(), cmd.OutOrStdout(), cmdCtx.Engine, args[0], format)
		},
	}
}

func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
