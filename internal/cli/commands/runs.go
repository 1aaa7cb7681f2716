package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/strata/internal/cli/output"
	"github.com/leapstack-labs/strata/internal/state"
	"github.com/leapstack-labs/strata/pkg/core"
	"github.com/spf13/cobra"
)

// DefaultRunsLimit is how many runs the runs command lists by default.
const DefaultRunsLimit = 20

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show invocation history",
		Long: `List recent build, run, test and seed invocations recorded in the state
database, newest first. Use "runs show <id>" for the models and tests of one
invocation.`,
		Example: `  # Recent invocations
  strata runs

  # The last five, as JSON
  strata runs --limit 5 --output json

  # Details of one invocation
  strata runs show 3f2c9a1e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", DefaultRunsLimit, "Maximum number of runs to list")
	cmd.AddCommand(newRunsShowCommand())

	return cmd
}

func newRunsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the models and tests of one invocation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(cmd, args[0])
		},
	}
}

func runRuns(cmd *cobra.Command, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := cmdCtx.Engine.StateStore().ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	summaries := make([]output.RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, runSummary(run))
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(summaries)
	}

	r.Header(1, fmt.Sprintf("Runs (%d)", len(summaries)))
	if len(summaries) == 0 {
		r.Muted("No runs recorded yet")
		return nil
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.ID, s.Command, valueOr(s.Selection, "*"), s.Environment, s.Status, s.StartedAt, durationText(s.DurationMS),
		})
	}
	r.Table([]string{"ID", "Command", "Selection", "Environment", "Status", "Started", "Duration"}, rows)
	return nil
}

func runRunsShow(cmd *cobra.Command, id string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	store := cmdCtx.Engine.StateStore()

	run, err := store.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, state.ErrRunNotFound) {
			return fmt.Errorf("run %s not found", id)
		}
		return err
	}
	modelRuns, err := store.GetModelRunsForRun(ctx, id)
	if err != nil {
		return err
	}
	testRuns, err := store.GetTestResultsForRun(ctx, id)
	if err != nil {
		return err
	}

	detail := output.RunDetail{
		RunSummary: runSummary(run),
		Models:     make([]output.ModelResultOutput, 0, len(modelRuns)),
		Tests:      make([]output.TestResultOutput, 0, len(testRuns)),
	}
	for _, mr := range modelRuns {
		detail.Models = append(detail.Models, modelRunOutput(mr))
	}
	for _, tr := range testRuns {
		detail.Tests = append(detail.Tests, testRunOutput(tr))
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(detail)
	}

	r.Header(1, "Run "+detail.ID)
	r.KeyValue("Command", detail.Command)
	r.KeyValue("Selection", valueOr(detail.Selection, "*"))
	r.KeyValue("Environment", detail.Environment)
	r.KeyValue("Status", detail.Status)
	r.KeyValue("Started", detail.StartedAt)
	r.KeyValue("Duration", durationText(detail.DurationMS))
	if detail.Error != "" {
		r.KeyValue("Error", detail.Error)
	}
	r.Println("")

	if len(detail.Models) > 0 {
		r.Header(2, fmt.Sprintf("Models (%d)", len(detail.Models)))
		for _, m := range detail.Models {
			r.StatusLine(m.Model, m.Status, modelDetail(m))
		}
		r.Println("")
	}
	if len(detail.Tests) > 0 {
		r.Header(2, fmt.Sprintf("Tests (%d)", len(detail.Tests)))
		for _, t := range detail.Tests {
			r.StatusLine(t.Name, t.Status, testDetail(t))
		}
		r.Println("")
	}
	return nil
}

func runSummary(run *core.Run) output.RunSummary {
	s := output.RunSummary{
		ID:          run.ID,
		Command:     run.Command,
		Selection:   run.Selection,
		Environment: run.Environment,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt.Local().Format(time.DateTime),
		Error:       run.Error,
	}
	if run.CompletedAt != nil {
		s.DurationMS = run.CompletedAt.Sub(run.StartedAt).Milliseconds()
	}
	return s
}

func modelRunOutput(mr *core.ModelRun) output.ModelResultOutput {
	out := output.ModelResultOutput{
		Model:           mr.ModelName,
		Relation:        mr.Relation,
		Materialization: string(mr.Materialization),
		Status:          string(mr.Status),
		ExecutionMS:     mr.ExecutionMS,
		Error:           mr.Error,
	}
	if mr.RowsAffected >= 0 {
		rows := mr.RowsAffected
		out.Rows = &rows
	}
	return out
}

func testRunOutput(tr *core.TestRun) output.TestResultOutput {
	return output.TestResultOutput{
		Name:        tr.Name,
		Model:       tr.ModelName,
		Column:      tr.ColumnName,
		Kind:        string(tr.Kind),
		Severity:    string(tr.Severity),
		Status:      string(tr.Status),
		Failures:    tr.Failures,
		ExecutionMS: tr.ExecutionMS,
		Error:       tr.Error,
	}
}

func durationText(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return (time.Duration(ms) * time.Millisecond).String()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
