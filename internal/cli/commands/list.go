package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/strata/internal/cli/output"
	"github.com/leapstack-labs/strata/internal/engine"
	"github.com/leapstack-labs/strata/pkg/core"
	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [selection...]",
		Short: "List models in execution order",
		Long: `List the selected models in the order run would materialize them, with
their materialization, relation, references and test count.

Nothing is executed; this is the way to check what a selection resolves to.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List all models (auto-detect output format)
  strata list

  # List what "run stg_orders+" would execute
  strata list stg_orders+

  # List models as JSON
  strata list --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args)
		},
	}

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := cmdCtx.Discover(); err != nil {
		return err
	}

	selection := selectionArg("", args)
	models, err := cmdCtx.Engine.Select(selection)
	if err != nil {
		return err
	}
	infos := modelInfos(cmdCtx.Engine, models)

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return listJSON(r, cmdCtx.Engine, selection, infos)
	case output.ModeMarkdown:
		return listMarkdown(r, infos)
	default:
		return listText(r, infos)
	}
}

func modelInfos(eng *engine.Engine, models []*core.Model) []output.ModelInfo {
	tests := map[string]int{}
	for _, a := range eng.Assertions() {
		tests[a.Model]++
	}

	infos := make([]output.ModelInfo, 0, len(models))
	for _, m := range models {
		infos = append(infos, output.ModelInfo{
			Name:         m.Name,
			Path:         m.Path,
			Relation:     m.Relation(eng.DefaultSchema()).String(),
			Materialized: string(m.Materialized),
			Tags:         m.Tags,
			DependsOn:    nonNil(m.DependsOn),
			Refs:         nonNil(m.Refs),
			Tests:        tests[m.Name],
			FilePath:     m.FilePath,
		})
	}
	return infos
}

// listText outputs models in styled text format.
func listText(r *output.Renderer, infos []output.ModelInfo) error {
	styles := r.Styles()
	r.Header(1, fmt.Sprintf("Models (%d)", len(infos)))

	for i, m := range infos {
		line := fmt.Sprintf("  %2d. %s %s", i+1, styles.ModelPath.Render(fmt.Sprintf("%-35s", m.Name)), styles.Muted.Render("["+m.Materialized+"]"))
		if len(m.DependsOn) > 0 {
			line += styles.Muted.Render(" <- " + strings.Join(m.DependsOn, ", "))
		}
		r.Println(line)
	}
	return nil
}

// listMarkdown outputs models in markdown format.
func listMarkdown(r *output.Renderer, infos []output.ModelInfo) error {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Models (%d)", len(infos))))
	r.Println("")

	for i, m := range infos {
		r.Println(output.FormatHeader(2, fmt.Sprintf("%d. %s", i+1, m.Name)))
		r.Println(output.FormatKeyValue("Materialized", m.Materialized))
		r.Println(output.FormatKeyValue("Relation", m.Relation))
		r.Println(output.FormatKeyValue("File", m.FilePath))
		r.Println(output.FormatKeyValue("Refs", output.FormatList(m.Refs)))
		if len(m.Tags) > 0 {
			r.Println(output.FormatKeyValue("Tags", output.FormatList(m.Tags)))
		}
		r.Println(output.FormatKeyValue("Tests", fmt.Sprintf("%d", m.Tests)))
		r.Println("")
	}
	return nil
}

// listJSON outputs models in JSON format.
func listJSON(r *output.Renderer, eng *engine.Engine, selection string, infos []output.ModelInfo) error {
	seeds := make([]string, 0, len(eng.Seeds()))
	for _, s := range eng.Seeds() {
		seeds = append(seeds, s.Name)
	}
	if selection == "" {
		selection = "*"
	}
	return r.JSON(output.ListOutput{
		Selection: selection,
		Models:    infos,
		Seeds:     seeds,
	})
}
