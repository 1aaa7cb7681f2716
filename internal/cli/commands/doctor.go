package commands

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/strata/internal/cli/config"
	"github.com/leapstack-labs/strata/internal/cli/output"
	"github.com/leapstack-labs/strata/internal/engine"
	"github.com/leapstack-labs/strata/pkg/core"
	"github.com/spf13/cobra"
)

// Health check outcomes.
const (
	checkPass  = "pass"
	checkWarn  = "warn"
	checkError = "error"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the project, target and state database",
		Long: `Check that the project can be built: the configuration loads, models
and seeds are discovered and form an acyclic graph, the target accepts
connections and the state database is not locked.

It also points out models without tests and seeds no model references.
The command fails when any check reports an error.`,
		Example: `  # Run every check
  strata doctor

  # Machine-readable report
  strata doctor --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         ProjectSummary `json:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks"`
	Score           int            `json:"score"`
	Recommendations []string       `json:"recommendations"`
	IssueCount      int            `json:"issue_count"`
}

// ProjectSummary contains project-level statistics.
type ProjectSummary struct {
	Models    int `json:"models"`
	Seeds     int `json:"seeds"`
	Tests     int `json:"tests"`
	DAGDepth  int `json:"dag_depth"`
	RootCount int `json:"root_count"`
	LeafCount int `json:"leaf_count"`
	EdgeCount int `json:"edge_count"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Group   string   `json:"group"`
	Status  string   `json:"status"`
	Details []string `json:"details,omitempty"`
}

func (c HealthCheck) issues() int {
	if c.Status == checkPass {
		return 0
	}
	if len(c.Details) == 0 {
		return 1
	}
	return len(c.Details)
}

func runDoctor(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	report := diagnose(cmd.Context(), cmdCtx.Cfg, cmdCtx.Engine)

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(report); err != nil {
			return err
		}
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, report)
	default:
		renderDoctorText(r, report)
	}

	for _, check := range report.HealthChecks {
		if check.Status == checkError {
			return fmt.Errorf("doctor found %d problem(s)", report.errorCount())
		}
	}
	return nil
}

func (d *DoctorOutput) errorCount() int {
	n := 0
	for _, c := range d.HealthChecks {
		if c.Status == checkError {
			n += c.issues()
		}
	}
	return n
}

// diagnose runs every check. Checks that depend on discovery are skipped
// when it fails.
func diagnose(ctx context.Context, cfg *config.Config, eng *engine.Engine) *DoctorOutput {
	var checks []HealthCheck

	cfgCheck := HealthCheck{ID: "PR01", Name: "Configuration file", Group: "project", Status: checkPass}
	if cfg.ConfigFile != "" {
		cfgCheck.Details = []string{cfg.ConfigFile}
	} else {
		cfgCheck.Status = checkWarn
		cfgCheck.Details = []string{"no strata.yaml found, using defaults"}
	}
	checks = append(checks, cfgCheck)

	discovery := HealthCheck{ID: "PR02", Name: "Model discovery", Group: "project", Status: checkPass}
	discovered := true
	if err := cfg.ValidateDirectories(); err != nil {
		discovery.Status = checkError
		discovery.Details = []string{err.Error()}
		discovered = false
	} else if _, err := eng.Discover(); err != nil {
		discovery.Status = checkError
		discovery.Details = splitErrors(err)
		discovered = false
	} else if len(eng.Models()) == 0 {
		discovery.Status = checkWarn
		discovery.Details = []string{"no models in " + cfg.ModelsDir}
	}
	checks = append(checks, discovery)

	var summary ProjectSummary
	if discovered {
		summary = buildProjectSummary(eng)
		checks = append(checks, untestedModels(eng), unusedSeeds(eng))
	}

	target := HealthCheck{ID: "TG01", Name: "Target connection", Group: "target", Status: checkPass}
	if dialect, err := eng.Dialect(ctx); err != nil {
		target.Status = checkError
		target.Details = []string{err.Error()}
	} else {
		target.Details = []string{fmt.Sprintf("%s, schema %s", dialect.Name, eng.DefaultSchema())}
	}
	checks = append(checks, target)

	checks = append(checks, lockCheck(ctx, eng), lastRunCheck(ctx, eng))

	report := &DoctorOutput{
		Summary:      summary,
		HealthChecks: checks,
	}
	for _, c := range checks {
		report.IssueCount += c.issues()
	}
	report.Score = calculateHealthScore(checks, summary.Models)
	report.Recommendations = generateRecommendations(checks)
	return report
}

func splitErrors(err error) []string {
	var out []string
	for _, line := range strings.Split(err.Error(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func buildProjectSummary(eng *engine.Engine) ProjectSummary {
	models := eng.Models()
	graph := eng.Graph()

	summary := ProjectSummary{
		Models: len(models),
		Seeds:  len(eng.Seeds()),
		Tests:  len(eng.Assertions()),
	}
	if graph == nil {
		return summary
	}

	summary.EdgeCount = graph.EdgeCount()
	if levels, err := graph.Levels(); err == nil {
		summary.DAGDepth = len(levels)
	}
	for _, m := range models {
		if len(graph.Parents(m.Name)) == 0 {
			summary.RootCount++
		}
		if len(graph.Children(m.Name)) == 0 {
			summary.LeafCount++
		}
	}
	return summary
}

func untestedModels(eng *engine.Engine) HealthCheck {
	check := HealthCheck{ID: "CV01", Name: "Models with tests", Group: "coverage", Status: checkPass}

	tested := map[string]bool{}
	for _, a := range eng.Assertions() {
		tested[a.Model] = true
	}
	for _, m := range eng.Models() {
		if !tested[m.Name] {
			check.Details = append(check.Details, m.Name+" has no tests")
		}
	}
	if len(check.Details) > 0 {
		check.Status = checkWarn
	}
	return check
}

func unusedSeeds(eng *engine.Engine) HealthCheck {
	check := HealthCheck{ID: "CV02", Name: "Referenced seeds", Group: "coverage", Status: checkPass}

	used := map[string]bool{}
	for _, m := range eng.Models() {
		for _, ref := range m.Refs {
			used[ref] = true
		}
	}
	for _, s := range eng.Seeds() {
		if !used[s.Name] {
			check.Details = append(check.Details, s.Name+" is not referenced by any model")
		}
	}
	if len(check.Details) > 0 {
		check.Status = checkWarn
	}
	return check
}

func lockCheck(ctx context.Context, eng *engine.Engine) HealthCheck {
	check := HealthCheck{ID: "ST01", Name: "Project lock", Group: "state", Status: checkPass}

	lock, err := eng.StateStore().GetLock(ctx)
	switch {
	case err != nil:
		check.Status = checkError
		check.Details = []string{err.Error()}
	case lock != nil:
		check.Status = checkWarn
		check.Details = []string{fmt.Sprintf("held by %s (%s) since %s",
			lock.Owner, lock.Command, lock.AcquiredAt.Local().Format("2006-01-02 15:04:05"))}
	}
	return check
}

func lastRunCheck(ctx context.Context, eng *engine.Engine) HealthCheck {
	check := HealthCheck{ID: "ST02", Name: "Last invocation", Group: "state", Status: checkPass}

	runs, err := eng.StateStore().ListRuns(ctx, 1)
	switch {
	case err != nil:
		check.Status = checkError
		check.Details = []string{err.Error()}
	case len(runs) == 0:
		check.Details = []string{"no runs recorded yet"}
	case runs[0].Status == core.RunStatusFailed || runs[0].Status == core.RunStatusCancelled:
		check.Status = checkWarn
		check.Details = []string{fmt.Sprintf("%s %s %s: %s", runs[0].Command, runs[0].ID, runs[0].Status, runs[0].Error)}
	default:
		check.Details = []string{fmt.Sprintf("%s %s %s", runs[0].Command, runs[0].ID, runs[0].Status)}
	}
	return check
}

// calculateHealthScore computes a health score from 0-100. Each issue costs
// less in larger projects and errors cost double.
func calculateHealthScore(checks []HealthCheck, modelCount int) int {
	score := 100.0

	basePenalty := 5.0
	if modelCount > 10 {
		basePenalty = 3.0
	}
	if modelCount > 50 {
		basePenalty = 2.0
	}
	if modelCount > 100 {
		basePenalty = 1.0
	}

	for _, check := range checks {
		switch check.Status {
		case checkError:
			score -= float64(check.issues()) * basePenalty * 2
		case checkWarn:
			score -= float64(check.issues()) * basePenalty
		}
	}

	return int(max(0, min(100, score)))
}

// generateRecommendations lists the fix for each failing check, at most five.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	for _, check := range checks {
		if check.Status == checkPass {
			continue
		}
		if rec := getRecommendation(check.ID); rec != "" {
			recommendations = append(recommendations, rec)
		}
	}
	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}
	return recommendations
}

func getRecommendation(id string) string {
	switch id {
	case "PR01":
		return "Run 'strata init' or add a strata.yaml to pin directories and the target"
	case "PR02":
		return "Fix the reported model files; every ref must name a model or seed"
	case "CV01":
		return "Declare not_null and unique tests for model keys in a schema.yml"
	case "CV02":
		return "Reference seeds with {{ ref('seed') }} or remove unused CSV files"
	case "TG01":
		return "Check the target section of strata.yaml and its credentials"
	case "ST01":
		return "Wait for the running invocation or let the stale lock expire (lock_timeout)"
	case "ST02":
		return "Inspect the last failure with 'strata runs show <id>'"
	default:
		return ""
	}
}

var groupCaser = cases.Title(language.English)

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Header(1, "Project Health Report")

	r.Println(styles.Header2.Render("Project Summary"))
	r.Printf("   Models: %d | Seeds: %d | Tests: %d\n", out.Summary.Models, out.Summary.Seeds, out.Summary.Tests)
	r.Printf("   DAG Depth: %d levels | Roots: %d | Leaves: %d | Edges: %d\n",
		out.Summary.DAGDepth, out.Summary.RootCount, out.Summary.LeafCount, out.Summary.EdgeCount)
	r.Println("")

	currentGroup := ""
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + groupCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.StatusSuccess.Render(output.IconSuccess)
		switch check.Status {
		case checkWarn:
			icon = styles.StatusWarning.Render(output.IconWarning)
		case checkError:
			icon = styles.StatusFailed.Render(output.IconFailed)
		}
		r.Printf("   %s %s: %s\n", icon, check.ID, check.Name)

		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Println("# Project Health Report")
	r.Println("")

	r.Println("## Project Summary")
	r.Println("")
	r.Println(output.FormatKeyValue("Models", fmt.Sprint(out.Summary.Models)))
	r.Println(output.FormatKeyValue("Seeds", fmt.Sprint(out.Summary.Seeds)))
	r.Println(output.FormatKeyValue("Tests", fmt.Sprint(out.Summary.Tests)))
	r.Println(output.FormatKeyValue("DAG Depth", fmt.Sprintf("%d levels", out.Summary.DAGDepth)))
	r.Println(output.FormatKeyValue("Root Models", fmt.Sprint(out.Summary.RootCount)))
	r.Println(output.FormatKeyValue("Leaf Models", fmt.Sprint(out.Summary.LeafCount)))
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + groupCaser.String(currentGroup))
			r.Println("")
		}
		r.Printf("- **[%s]** %s: %s\n", strings.ToUpper(check.Status), check.ID, check.Name)
		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}
}
