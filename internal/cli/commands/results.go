package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/strata/internal/assertion"
	"github.com/leapstack-labs/strata/internal/cli/output"
	"github.com/leapstack-labs/strata/internal/engine"
	"github.com/leapstack-labs/strata/pkg/core"
)

// invocation collects what a build, run, test or seed produced so every
// command renders the same way.
type invocation struct {
	command   string
	selection string
	run       *core.Run
	seeds     []engine.SeedResult
	models    []*core.ModelResult
	tests     *assertion.Summary
	total     time.Duration
	err       error
}

func (inv *invocation) status() string {
	if inv.run != nil && inv.run.Status != core.RunStatusRunning {
		return string(inv.run.Status)
	}
	if inv.err != nil {
		return string(core.RunStatusFailed)
	}
	return string(core.RunStatusCompleted)
}

func (inv *invocation) toOutput() output.InvocationOutput {
	out := output.InvocationOutput{
		Command:   inv.command,
		Selection: inv.selection,
		Status:    inv.status(),
		TotalMS:   inv.total.Milliseconds(),
	}
	if inv.run != nil {
		out.RunID = inv.run.ID
	}
	if inv.err != nil {
		out.Error = inv.err.Error()
	}
	for _, s := range inv.seeds {
		out.Seeds = append(out.Seeds, output.SeedOutput{
			Seed:     s.Seed.Name,
			Relation: s.Relation,
			File:     s.Seed.FilePath,
			LoadMS:   s.Duration.Milliseconds(),
		})
	}
	for _, m := range inv.models {
		out.Models = append(out.Models, modelResultOutput(m))
	}
	if inv.tests != nil {
		for _, r := range inv.tests.Results {
			out.Tests = append(out.Tests, testResultOutput(r))
		}
		out.Summary = &output.TestSummaryOutput{
			Passed:  inv.tests.Passed,
			Failed:  inv.tests.Failed,
			Warned:  inv.tests.Warned,
			Errored: inv.tests.Errored,
		}
	}
	return out
}

func modelResultOutput(m *core.ModelResult) output.ModelResultOutput {
	out := output.ModelResultOutput{
		Model:           m.Model,
		Relation:        m.Relation,
		Materialization: string(m.Materialization),
		Status:          string(m.Status),
		ExecutionMS:     m.Duration.Milliseconds(),
	}
	if m.Rows >= 0 {
		rows := m.Rows
		out.Rows = &rows
	}
	if m.Err != nil {
		out.Error = m.Err.Error()
	}
	return out
}

func testResultOutput(r *core.AssertionResult) output.TestResultOutput {
	out := output.TestResultOutput{
		Name:        r.Assertion.Name,
		Model:       r.Assertion.Model,
		Column:      r.Assertion.Column,
		Kind:        string(r.Assertion.Kind),
		Severity:    string(r.Assertion.Severity),
		Status:      string(r.Status),
		Failures:    r.Failures,
		ExecutionMS: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

// renderInvocation writes the invocation in the renderer's mode.
func renderInvocation(r *output.Renderer, inv *invocation) error {
	out := inv.toOutput()
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, titleFor(inv))

	if len(out.Seeds) > 0 {
		r.Header(2, fmt.Sprintf("Seeds (%d)", len(out.Seeds)))
		for _, s := range out.Seeds {
			r.StatusLine(s.Seed, string(core.ModelRunStatusSuccess), s.Relation)
		}
		r.Println("")
	}

	if len(out.Models) > 0 {
		r.Header(2, fmt.Sprintf("Models (%d)", len(out.Models)))
		for _, m := range out.Models {
			r.StatusLine(m.Model, m.Status, modelDetail(m))
		}
		r.Println("")
	}

	if out.Summary != nil {
		r.Header(2, fmt.Sprintf("Tests (%d)", len(out.Tests)))
		for _, t := range out.Tests {
			r.StatusLine(t.Name, t.Status, testDetail(t))
		}
		r.Println("")
	}

	renderFooter(r, out)
	return nil
}

func titleFor(inv *invocation) string {
	title := output.StatusLabel(inv.command)
	if inv.selection != "" {
		title += " " + inv.selection
	}
	return title
}

func modelDetail(m output.ModelResultOutput) string {
	parts := []string{m.Materialization}
	if m.Rows != nil {
		parts = append(parts, fmt.Sprintf("%d rows", *m.Rows))
	}
	if m.Status == string(core.ModelRunStatusSuccess) || m.Status == string(core.ModelRunStatusFailed) {
		parts = append(parts, fmt.Sprintf("%dms", m.ExecutionMS))
	}
	if m.Error != "" {
		parts = append(parts, m.Error)
	}
	return strings.Join(parts, ", ")
}

func testDetail(t output.TestResultOutput) string {
	switch {
	case t.Error != "":
		return t.Error
	case t.Failures > 0:
		return fmt.Sprintf("%d failing rows", t.Failures)
	default:
		return ""
	}
}

func renderFooter(r *output.Renderer, out output.InvocationOutput) {
	var counts []string
	if n := len(out.Models); n > 0 {
		counts = append(counts, countModels(out.Models))
	}
	if out.Summary != nil {
		counts = append(counts, fmt.Sprintf("tests: %d passed, %d failed, %d warned, %d errored",
			out.Summary.Passed, out.Summary.Failed, out.Summary.Warned, out.Summary.Errored))
	}

	summary := fmt.Sprintf("%s in %s", output.StatusLabel(out.Status), (time.Duration(out.TotalMS) * time.Millisecond).String())
	if len(counts) > 0 {
		summary += " (" + strings.Join(counts, "; ") + ")"
	}
	if out.RunID != "" {
		r.KeyValue("Run", out.RunID)
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatKeyValue("Result", summary))
		return
	}
	style := r.Styles().StatusStyle(out.Status)
	r.Println(style.Render(output.StatusIcon(out.Status) + " " + summary))
}

func countModels(models []output.ModelResultOutput) string {
	counts := map[string]int{}
	for _, m := range models {
		counts[m.Status]++
	}
	var parts []string
	for _, status := range []core.ModelRunStatus{
		core.ModelRunStatusSuccess,
		core.ModelRunStatusFailed,
		core.ModelRunStatusSkipped,
	} {
		if n := counts[string(status)]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	return "models: " + strings.Join(parts, ", ")
}
