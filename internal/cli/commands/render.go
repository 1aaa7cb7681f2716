package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/strata/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <model>",
		Short: "Print a model's SQL with refs resolved",
		Long: `Print the SQL of a model with every {{ ref('...') }} replaced by the
quoted relation it resolves to in the active target.

This is the statement body run would wrap in CREATE OR REPLACE VIEW or
TABLE, useful for debugging a model by hand.

Output adapts to environment:
  - Terminal: Plain SQL
  - Piped/Scripted: Markdown with a code block`,
		Example: `  # Render a model's SQL
  strata render customer_orders

  # Save it to a file
  strata render customer_orders --output text > customer_orders.sql

  # Render as JSON
  strata render customer_orders --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0])
		},
		ValidArgsFunction: completeModelNames,
	}

	return cmd
}

func runRender(cmd *cobra.Command, name string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := cmdCtx.Discover(); err != nil {
		return err
	}

	eng := cmdCtx.Engine
	m, ok := eng.Model(name)
	if !ok {
		return fmt.Errorf("model %q not found", name)
	}
	dialect, err := eng.Dialect(cmd.Context())
	if err != nil {
		return err
	}
	sql, err := eng.RenderModel(m, dialect)
	if err != nil {
		return fmt.Errorf("failed to render model: %w", err)
	}
	sql = strings.TrimSpace(sql)

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(output.RenderOutput{
			Model:           m.Name,
			Relation:        m.Relation(eng.DefaultSchema()).String(),
			Materialization: string(m.Materialized),
			SQL:             sql,
		})
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Rendered SQL: "+m.Name))
		r.Println("")
		r.Println(output.FormatKeyValue("Relation", m.Relation(eng.DefaultSchema()).String()))
		r.Println(output.FormatKeyValue("Materialized", string(m.Materialized)))
		r.Println("")
		r.Println(output.FormatCodeBlock("sql", sql))
	default:
		r.Println(sql)
	}
	return nil
}

// completeModelNames completes the first argument with discovered model names.
func completeModelNames(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer cleanup()
	if _, err := cmdCtx.Discover(); err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	names := make([]string, 0, len(cmdCtx.Engine.Models()))
	for _, m := range cmdCtx.Engine.Models() {
		names = append(names, m.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
