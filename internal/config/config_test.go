package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/strata/pkg/adapter"
	"github.com/leapstack-labs/strata/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/strata/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/strata/pkg/adapters/postgres"
)

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		name      string
		target    *core.TargetConfig
		errSubstr string
	}{
		{name: "nil target", target: nil, errSubstr: "target type is required"},
		{name: "empty type", target: &core.TargetConfig{}, errSubstr: "target type is required"},
		{name: "duckdb", target: &core.TargetConfig{Type: "duckdb"}},
		{name: "duckdb uppercase", target: &core.TargetConfig{Type: "DuckDB"}},
		{name: "postgres", target: &core.TargetConfig{Type: "postgres"}},
		{name: "unknown", target: &core.TargetConfig{Type: "mysql"}, errSubstr: "unknown target type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTarget(tt.target)
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}

	var unknown *adapter.UnknownAdapterError
	require.ErrorAs(t, ValidateTarget(&core.TargetConfig{Type: "oracle"}), &unknown)
	assert.Contains(t, unknown.Available, "duckdb")
}

func TestApplyTargetDefaults(t *testing.T) {
	duck := &core.TargetConfig{Type: "DuckDB"}
	ApplyTargetDefaults(duck)
	assert.Equal(t, "duckdb", duck.Type)
	assert.Equal(t, "main", duck.Schema)

	pg := &core.TargetConfig{Type: "postgres"}
	ApplyTargetDefaults(pg)
	assert.Equal(t, "public", pg.Schema)
	assert.Equal(t, 5432, pg.Port)

	custom := &core.TargetConfig{Type: "duckdb", Schema: "analytics"}
	ApplyTargetDefaults(custom)
	assert.Equal(t, "analytics", custom.Schema)

	assert.Equal(t, "main", DefaultSchemaForType("snowflake"))
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "models", "staging")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	assert.Empty(t, FindProjectRoot(nested, 10))

	require.NoError(t, os.WriteFile(filepath.Join(root, "strata.yml"), []byte("name: demo\n"), 0o600))
	assert.Equal(t, root, FindProjectRoot(nested, 10))
	assert.Equal(t, filepath.Join(root, "strata.yml"), FindConfigFile(root))

	// search depth is bounded
	assert.Empty(t, FindProjectRoot(nested, 1))
}

func TestParseGroupTree(t *testing.T) {
	raw := map[string]any{
		"+materialized": "view",
		"+tags":         "daily",
		"staging": map[string]any{
			"+schema": "staging",
		},
		"core": map[string]any{
			"+materialized": "table",
			"+tags":         []any{"nightly", "daily"},
			"finance": map[string]any{
				"+materialized": "view",
			},
		},
	}

	tree, err := ParseGroupTree(raw)
	require.NoError(t, err)

	tests := []struct {
		name  string
		group []string
		want  GroupSettings
	}{
		{
			name:  "project defaults at root",
			group: nil,
			want:  GroupSettings{Materialized: core.MaterializeView, Tags: []string{"daily"}},
		},
		{
			name:  "group schema keeps project materialization",
			group: []string{"staging"},
			want:  GroupSettings{Materialized: core.MaterializeView, Schema: "staging", Tags: []string{"daily"}},
		},
		{
			name:  "group overrides project",
			group: []string{"core"},
			want:  GroupSettings{Materialized: core.MaterializeTable, Tags: []string{"daily", "nightly"}},
		},
		{
			name:  "deepest group wins",
			group: []string{"core", "finance"},
			want:  GroupSettings{Materialized: core.MaterializeView, Tags: []string{"daily", "nightly"}},
		},
		{
			name:  "unknown subgroup falls back to nearest ancestor",
			group: []string{"core", "marketing", "deep"},
			want:  GroupSettings{Materialized: core.MaterializeTable, Tags: []string{"daily", "nightly"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tree.Resolve(tt.group))
		})
	}
}

func TestParseGroupTree_Empty(t *testing.T) {
	tree, err := ParseGroupTree(nil)
	require.NoError(t, err)
	assert.Equal(t, GroupSettings{}, tree.Resolve([]string{"anything"}))

	var nilTree *GroupTree
	assert.Equal(t, GroupSettings{}, nilTree.Resolve(nil))
}

func TestParseGroupTree_Invalid(t *testing.T) {
	raw := map[string]any{
		"+materialized": "incremental",
		"core": map[string]any{
			"+materialised": "table",
		},
		"staging": "table",
	}

	_, err := ParseGroupTree(raw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))

	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, cfgErr.Problems, 3)
}
