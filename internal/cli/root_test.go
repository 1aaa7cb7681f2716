package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/strata/internal/cli/commands"
	"github.com/leapstack-labs/strata/internal/cli/output"
	"github.com/leapstack-labs/strata/internal/cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	out    string
	errOut string
	err    error
}

// execute runs the root command against the project in dir.
func execute(t *testing.T, dir string, args ...string) result {
	t.Helper()
	root := NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs(append([]string{
		"--config", filepath.Join(dir, "strata.yaml"),
		"--state", filepath.Join(dir, ".strata", "state.db"),
	}, args...))

	err := root.ExecuteContext(context.Background())
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func decode[T any](t *testing.T, res result) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(res.out), &v), "stdout: %s\nstderr: %s", res.out, res.errOut)
	return v
}

func modelStatuses(models []output.ModelResultOutput) map[string]string {
	out := make(map[string]string, len(models))
	for _, m := range models {
		out[m.Model] = m.Status
	}
	return out
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"build", "run", "test", "seed", "list", "dag", "runs", "query", "render", "doctor", "init", "version", "completion"} {
		assert.Contains(t, names, want)
	}

	for _, flag := range []string{"config", "project-dir", "target", "models-dir", "seeds-dir", "database", "state", "threads", "verbose", "output", "log-format"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "flag %q", flag)
	}
}

func TestBuild_JSON(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	res := execute(t, dir, "build", "--output", "json")
	require.NoError(t, res.err, res.errOut)

	inv := decode[output.InvocationOutput](t, res)
	assert.Equal(t, "build", inv.Command)
	assert.Equal(t, "completed", inv.Status)
	assert.NotEmpty(t, inv.RunID)
	assert.Len(t, inv.Seeds, 2)

	assert.Equal(t, map[string]string{
		"stg_customers":   "success",
		"stg_orders":      "success",
		"customer_orders": "success",
	}, modelStatuses(inv.Models))

	require.NotNil(t, inv.Summary)
	assert.Equal(t, 6, inv.Summary.Passed)
	assert.Zero(t, inv.Summary.Failed)
}

func TestBuild_ThenQueryAndHistory(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	build := execute(t, dir, "build", "--threads", "4", "--output", "json")
	require.NoError(t, build.err, build.errOut)
	runID := decode[output.InvocationOutput](t, build).RunID

	q := execute(t, dir, "query", "SELECT customer_id, order_count FROM customer_orders ORDER BY customer_id", "--format", "csv")
	require.NoError(t, q.err, q.errOut)
	assert.Equal(t, "customer_id,order_count\n1,2\n2,1\n3,0\n", q.out)

	tables := execute(t, dir, "query", "tables", "--format", "json")
	require.NoError(t, tables.err, tables.errOut)
	assert.Contains(t, tables.out, `"customer_orders"`)
	assert.Contains(t, tables.out, `"raw_orders"`)

	schema := execute(t, dir, "query", "schema", "customer_orders", "--format", "csv")
	require.NoError(t, schema.err, schema.errOut)
	assert.Contains(t, schema.out, "order_count")

	runs := execute(t, dir, "runs", "--output", "json")
	require.NoError(t, runs.err, runs.errOut)
	summaries := decode[[]output.RunSummary](t, runs)
	require.Len(t, summaries, 1)
	assert.Equal(t, runID, summaries[0].ID)
	assert.Equal(t, "build", summaries[0].Command)
	assert.Equal(t, "completed", summaries[0].Status)

	show := execute(t, dir, "runs", "show", runID, "--output", "json")
	require.NoError(t, show.err, show.errOut)
	detail := decode[output.RunDetail](t, show)
	assert.Len(t, detail.Models, 3)
	assert.Len(t, detail.Tests, 6)

	missing := execute(t, dir, "runs", "show", "no-such-run")
	require.Error(t, missing.err)
	assert.Contains(t, missing.err.Error(), "not found")
}

func TestRun_FailureKeepsPriorWork(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	testutil.WriteFiles(t, dir, map[string]string{
		"models/core/broken.sql": "SELECT missing_column FROM {{ ref('stg_orders') }}",
	})

	seed := execute(t, dir, "seed", "--output", "json")
	require.NoError(t, seed.err, seed.errOut)

	res := execute(t, dir, "run", "--output", "json")
	require.Error(t, res.err)

	inv := decode[output.InvocationOutput](t, res)
	assert.Equal(t, "failed", inv.Status)
	statuses := modelStatuses(inv.Models)
	assert.Equal(t, "failed", statuses["broken"])
	assert.Equal(t, "success", statuses["stg_orders"])

	// the staging view created before the failure is still queryable
	q := execute(t, dir, "query", "SELECT COUNT(*) AS n FROM stg_orders", "--format", "csv")
	require.NoError(t, q.err, q.errOut)
	assert.Equal(t, "n\n3\n", q.out)
}

func TestTest_ReportsFailures(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	testutil.WriteFiles(t, dir, map[string]string{
		"seeds/raw_orders.csv": "id,customer_id,status\n10,1,placed\n10,9,lost\n",
	})

	build := execute(t, dir, "build", "--output", "json")
	require.Error(t, build.err)

	res := execute(t, dir, "test", "stg_orders", "--output", "json")
	require.Error(t, res.err)

	inv := decode[output.InvocationOutput](t, res)
	require.NotNil(t, inv.Summary)
	// unique order_id, accepted status and the customer relationship fail
	assert.Equal(t, 3, inv.Summary.Failed)
	assert.Equal(t, 1, inv.Summary.Passed)

	failing := map[string]int64{}
	for _, tr := range inv.Tests {
		if tr.Status == "fail" {
			failing[tr.Kind] = tr.Failures
		}
	}
	assert.Equal(t, int64(1), failing["accepted_values"])
	assert.Equal(t, int64(1), failing["relationships"])
}

func TestList_Selection(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	res := execute(t, dir, "list", "+customer_orders", "--output", "json")
	require.NoError(t, res.err, res.errOut)
	list := decode[output.ListOutput](t, res)
	require.Len(t, list.Models, 3)
	assert.Equal(t, "customer_orders", list.Models[2].Name)
	assert.Equal(t, "table", list.Models[2].Materialized)
	assert.Equal(t, "view", list.Models[0].Materialized)

	res = execute(t, dir, "list", "tag:core", "--output", "json")
	require.NoError(t, res.err, res.errOut)
	list = decode[output.ListOutput](t, res)
	require.Len(t, list.Models, 1)
	assert.Equal(t, "customer_orders", list.Models[0].Name)

	res = execute(t, dir, "list", "nope")
	require.Error(t, res.err)
}

func TestDAG_Markdown(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	res := execute(t, dir, "dag", "--output", "markdown")
	require.NoError(t, res.err, res.errOut)

	testutil.AssertNoANSI(t, res.out)
	testutil.AssertValidMarkdown(t, res.out)
	assert.Contains(t, res.out, "## Level 0 (Roots)")
	assert.Contains(t, res.out, "- customer_orders (table)")
	assert.Contains(t, res.out, "- **Total Dependencies:** 2")
}

func TestRender_ResolvesRefs(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	res := execute(t, dir, "render", "customer_orders", "--output", "text")
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, `"main"."stg_customers"`)
	assert.NotContains(t, res.out, "ref(")
}

func TestDoctor_JSON(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	res := execute(t, dir, "doctor", "--output", "json")
	require.NoError(t, res.err, res.errOut)

	report := decode[commands.DoctorOutput](t, res)
	assert.Equal(t, 3, report.Summary.Models)
	assert.Positive(t, report.Score)
}

func TestSeed_Markdown(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	res := execute(t, dir, "seed", "--output", "markdown")
	require.NoError(t, res.err, res.errOut)
	testutil.AssertNoANSI(t, res.out)
	assert.Contains(t, res.out, "## Seeds (2)")
	assert.Contains(t, res.out, "**raw_orders**")
}

func TestTargetSelection(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	testutil.WriteFiles(t, dir, map[string]string{
		"strata.yaml": testutil.ProjectFiles["strata.yaml"] + `environments:
  ci:
    target:
      type: duckdb
      database: ":memory:"
`,
	})

	res := execute(t, dir, "--target", "ci", "build", "--output", "json")
	require.NoError(t, res.err, res.errOut)
	assert.NoFileExists(t, filepath.Join(dir, "warehouse.duckdb"))

	res = execute(t, dir, "--target", "qa", "list")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), `unknown target "qa"`)
}

func TestInvalidOutputMode(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	res := execute(t, dir, "list", "--output", "yaml")
	require.Error(t, res.err)
}

func TestVersion_NoProject(t *testing.T) {
	res := execute(t, t.TempDir(), "version")
	require.NoError(t, res.err)
	assert.True(t, strings.HasPrefix(res.out, "strata "+Version))
}
