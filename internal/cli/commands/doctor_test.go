package commands

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/strata/internal/cli/config"
	"github.com/leapstack-labs/strata/internal/cli/testutil"
	"github.com/leapstack-labs/strata/internal/engine"
	"github.com/leapstack-labs/strata/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateHealthScore(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		modelCount int
		want       int
	}{
		{name: "no checks", want: 100},
		{
			name:       "all passing",
			checks:     []HealthCheck{{ID: "PR01", Status: checkPass}, {ID: "PR02", Status: checkPass}},
			modelCount: 10,
			want:       100,
		},
		{
			name:       "warnings cost one penalty per detail",
			checks:     []HealthCheck{{ID: "CV01", Status: checkWarn, Details: []string{"a", "b"}}},
			modelCount: 10,
			want:       90,
		},
		{
			name:       "errors cost double",
			checks:     []HealthCheck{{ID: "TG01", Status: checkError, Details: []string{"refused"}}},
			modelCount: 10,
			want:       90,
		},
		{
			name:       "larger projects are penalized less",
			checks:     []HealthCheck{{ID: "CV01", Status: checkWarn, Details: []string{"a", "b", "c", "d", "e"}}},
			modelCount: 101,
			want:       95,
		},
		{
			name:       "clamped at zero",
			checks:     []HealthCheck{{ID: "PR02", Status: checkError, Details: make([]string, 20)}},
			modelCount: 1,
			want:       0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calculateHealthScore(tt.checks, tt.modelCount))
		})
	}
}

func TestHealthCheckIssues(t *testing.T) {
	assert.Equal(t, 0, HealthCheck{Status: checkPass, Details: []string{"info"}}.issues())
	assert.Equal(t, 1, HealthCheck{Status: checkWarn}.issues())
	assert.Equal(t, 2, HealthCheck{Status: checkError, Details: []string{"a", "b"}}.issues())
}

func TestGenerateRecommendations(t *testing.T) {
	recs := generateRecommendations([]HealthCheck{
		{ID: "PR01", Status: checkPass},
		{ID: "CV01", Status: checkWarn},
		{ID: "TG01", Status: checkError},
		{ID: "XX99", Status: checkWarn},
	})
	require.Len(t, recs, 2)
	assert.Contains(t, recs[0], "schema.yml")
	assert.Contains(t, recs[1], "target")
}

func newDoctorEngine(t *testing.T, root string) (*config.Config, *engine.Engine) {
	t.Helper()
	cfg := &config.Config{
		ModelsDir: filepath.Join(root, "models"),
		SeedsDir:  filepath.Join(root, "seeds"),
		StatePath: ":memory:",
	}
	eng, err := engine.New(engine.Config{
		ModelsDir: cfg.ModelsDir,
		SeedsDir:  cfg.SeedsDir,
		StatePath: cfg.StatePath,
		Target:    core.TargetConfig{Type: "duckdb", Database: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return cfg, eng
}

func findCheck(t *testing.T, report *DoctorOutput, id string) HealthCheck {
	t.Helper()
	for _, c := range report.HealthChecks {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("check %s not in report", id)
	return HealthCheck{}
}

func TestDiagnose_HealthyProject(t *testing.T) {
	root := testutil.SetupTestProject(t)
	cfg, eng := newDoctorEngine(t, root)

	report := diagnose(context.Background(), cfg, eng)

	assert.Equal(t, 3, report.Summary.Models)
	assert.Equal(t, 2, report.Summary.Seeds)
	assert.Equal(t, 2, report.Summary.DAGDepth)
	assert.Equal(t, 2, report.Summary.RootCount)
	assert.Equal(t, 1, report.Summary.LeafCount)
	assert.Equal(t, 2, report.Summary.EdgeCount)

	assert.Equal(t, checkPass, findCheck(t, report, "PR02").Status)
	assert.Equal(t, checkPass, findCheck(t, report, "TG01").Status)
	assert.Equal(t, checkPass, findCheck(t, report, "ST01").Status)
	assert.Equal(t, checkPass, findCheck(t, report, "CV02").Status)

	untested := findCheck(t, report, "CV01")
	assert.Equal(t, checkWarn, untested.Status)
	assert.Equal(t, []string{"customer_orders has no tests"}, untested.Details)

	// no config file was loaded
	assert.Equal(t, checkWarn, findCheck(t, report, "PR01").Status)
	assert.Zero(t, report.errorCount())
}

func TestDiagnose_ConfigFile(t *testing.T) {
	root := testutil.SetupTestProject(t)
	cfg, eng := newDoctorEngine(t, root)
	cfg.ConfigFile = filepath.Join(root, "strata.yaml")

	report := diagnose(context.Background(), cfg, eng)

	check := findCheck(t, report, "PR01")
	assert.Equal(t, checkPass, check.Status)
	assert.Equal(t, []string{cfg.ConfigFile}, check.Details)
}

func TestDiagnose_BrokenProject(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"models/a.sql":     "SELECT * FROM {{ ref('missing') }}",
		"seeds/unused.csv": "id\n1\n",
	})
	cfg, eng := newDoctorEngine(t, root)

	report := diagnose(context.Background(), cfg, eng)

	discovery := findCheck(t, report, "PR02")
	assert.Equal(t, checkError, discovery.Status)
	assert.NotEmpty(t, discovery.Details)
	assert.Positive(t, report.errorCount())

	for _, c := range report.HealthChecks {
		assert.NotEqual(t, "CV01", c.ID, "coverage checks need a discovered project")
	}
}

func TestDiagnose_MissingModelsDir(t *testing.T) {
	cfg, eng := newDoctorEngine(t, t.TempDir())

	report := diagnose(context.Background(), cfg, eng)

	discovery := findCheck(t, report, "PR02")
	assert.Equal(t, checkError, discovery.Status)
	assert.Contains(t, discovery.Details[0], "models directory does not exist")
}

func TestUnusedSeeds(t *testing.T) {
	root := testutil.SetupTestProject(t)
	testutil.WriteFiles(t, root, map[string]string{"seeds/country_codes.csv": "code\nNL\n"})
	_, eng := newDoctorEngine(t, root)
	_, err := eng.Discover()
	require.NoError(t, err)

	check := unusedSeeds(eng)
	assert.Equal(t, checkWarn, check.Status)
	assert.Equal(t, []string{"country_codes is not referenced by any model"}, check.Details)
}
