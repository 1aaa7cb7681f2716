package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/strata/internal/cli/output"
	"github.com/leapstack-labs/strata/internal/engine"
	"github.com/spf13/cobra"
)

// GraphQuerier provides read-only access to DAG structure.
type GraphQuerier interface {
	Parents(string) []string
	Children(string) []string
	NodeCount() int
	EdgeCount() int
}

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dag [selection...]",
		Short: "Show the dependency graph",
		Long: `Display the dependency graph of the project grouped by execution level.

Models of the same level do not depend on each other; with --threads above 1
they are materialized concurrently. A selection restricts the graph to the
selected models.`,
		Example: `  # Show the DAG
  strata dag

  # Show what customer_orders is built from
  strata dag +customer_orders

  # Output as JSON
  strata dag --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDAG(cmd, args)
		},
	}

	return cmd
}

func runDAG(cmd *cobra.Command, args []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := cmdCtx.Discover(); err != nil {
		return err
	}

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	models, err := eng.Select(selectionArg("", args))
	if err != nil {
		return err
	}
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	graph := eng.Graph().Subgraph(names)

	levels, err := graph.Levels()
	if err != nil {
		return fmt.Errorf("failed to get execution levels: %w", err)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return dagJSON(r, graph, levels)
	case output.ModeMarkdown:
		return dagMarkdown(r, eng, graph, levels)
	default:
		return dagText(r, eng, graph, levels)
	}
}

func materializationOf(eng *engine.Engine, name string) string {
	if m, ok := eng.Model(name); ok {
		return string(m.Materialized)
	}
	return ""
}

// dagText outputs DAG in styled text format.
func dagText(r *output.Renderer, eng *engine.Engine, graph GraphQuerier, levels [][]string) error {
	styles := r.Styles()

	r.Header(1, "Dependency Graph")

	for i, level := range levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, model := range level {
			r.Printf("  %s %s\n", styles.ModelPath.Render(model), styles.Muted.Render("["+materializationOf(eng, model)+"]"))
			if deps := graph.Parents(model); len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(deps, ", "))
			}
			if children := graph.Children(model); len(children) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Muted(fmt.Sprintf("Total: %d models, %d dependencies", graph.NodeCount(), graph.EdgeCount()))
	return nil
}

// dagMarkdown outputs DAG in markdown format.
func dagMarkdown(r *output.Renderer, eng *engine.Engine, graph GraphQuerier, levels [][]string) error {
	r.Println(output.FormatHeader(1, "Dependency Graph"))
	r.Println("")

	for i, level := range levels {
		levelName := fmt.Sprintf("Level %d", i)
		if i == 0 {
			levelName = "Level 0 (Roots)"
		}
		r.Println(output.FormatHeader(2, levelName))

		for _, model := range level {
			r.Printf("- %s (%s)\n", model, materializationOf(eng, model))
			if deps := graph.Parents(model); len(deps) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(deps, ", "))
			}
			if children := graph.Children(model); len(children) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Models", fmt.Sprintf("%d", graph.NodeCount())))
	r.Println(output.FormatKeyValue("Total Dependencies", fmt.Sprintf("%d", graph.EdgeCount())))
	return nil
}

// dagJSON outputs DAG in JSON format.
func dagJSON(r *output.Renderer, graph GraphQuerier, levels [][]string) error {
	dagOutput := output.DAGOutput{
		Levels:      make([]output.DAGLevel, 0, len(levels)),
		TotalModels: graph.NodeCount(),
		TotalEdges:  graph.EdgeCount(),
	}

	for i, level := range levels {
		dagLevel := output.DAGLevel{
			Level:  i,
			Models: make([]output.DAGNode, 0, len(level)),
		}
		for _, model := range level {
			dagLevel.Models = append(dagLevel.Models, output.DAGNode{
				Path:      model,
				DependsOn: nonNil(graph.Parents(model)),
				UsedBy:    nonNil(graph.Children(model)),
			})
		}
		dagOutput.Levels = append(dagOutput.Levels, dagLevel)
	}

	return r.JSON(dagOutput)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
