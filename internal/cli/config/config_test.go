package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/strata/pkg/core"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/strata/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/strata/pkg/adapters/postgres"
)

func writeProject(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "strata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	flags.String("project-dir", "", "")
	flags.String("models-dir", "", "")
	flags.String("seeds-dir", "", "")
	flags.String("database", "", "")
	flags.String("state", "", "")
	flags.StringP("target", "t", "", "")
	flags.Int("threads", 1, "")
	flags.String("output", "", "")
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfgPath := writeProject(t, "name: shop\n")
	root := filepath.Dir(cfgPath)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.Name)
	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(root, "models"), cfg.ModelsDir)
	assert.Equal(t, filepath.Join(root, "seeds"), cfg.SeedsDir)
	assert.Equal(t, filepath.Join(root, ".strata", "state.db"), cfg.StatePath)
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, 1, cfg.Threads)
	assert.Equal(t, time.Hour, cfg.LockTimeout)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	require.NotNil(t, cfg.Target)
	assert.Equal(t, "duckdb", cfg.Target.Type)
	assert.Equal(t, "main", cfg.Target.Schema)
	assert.NotNil(t, cfg.Groups)

	assert.Equal(t, cfgPath, cfg.ConfigFile)
}

func TestLoadConfig_FileValues(t *testing.T) {
	cfgPath := writeProject(t, `
models_dir: transform
threads: 4
lock_timeout: 15m
target:
  type: duckdb
  database: warehouse.duckdb
models:
  +materialized: view
  marts:
    +materialized: table
    +tags: [nightly]
`)
	root := filepath.Dir(cfgPath)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "transform"), cfg.ModelsDir)
	assert.Equal(t, 4, cfg.Threads)
	assert.Equal(t, 15*time.Minute, cfg.LockTimeout)
	assert.Equal(t, filepath.Join(root, "warehouse.duckdb"), cfg.Target.Database)
	assert.Equal(t, cfg.Target.Database, cfg.DatabasePath)

	marts := cfg.Groups.Resolve([]string{"marts"})
	assert.Equal(t, core.MaterializeTable, marts.Materialized)
	assert.Equal(t, []string{"nightly"}, marts.Tags)
	assert.Equal(t, core.MaterializeView, cfg.Groups.Resolve([]string{"staging"}).Materialized)
}

func TestLoadConfig_MemoryDatabase(t *testing.T) {
	cfgPath := writeProject(t, "target:\n  type: duckdb\n  database: \":memory:\"\n")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Target.Database)
}

func TestLoadConfig_InvalidGroupTree(t *testing.T) {
	cfgPath := writeProject(t, "models:\n  marts:\n    +materialized: ephemeral\n")

	_, err := LoadConfig(cfgPath, nil)
	require.Error(t, err)

	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "models.marts")
}

func TestLoadConfig_InvalidThreads(t *testing.T) {
	cfgPath := writeProject(t, "threads: 0\n")

	_, err := LoadConfig(cfgPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threads must be at least 1")
}

func TestLoadConfig_InvalidTarget(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"unknown type", "target:\n  type: mysql\n", []string{"invalid target configuration", "mysql"}},
		{"unknown environment type", "environments:\n  dev:\n    target:\n      type: oracle\n", []string{"oracle"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeProject(t, tt.content), nil)
			require.Error(t, err)
			for _, want := range tt.want {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

const envsProject = `
target:
  type: duckdb
  database: dev.duckdb
environments:
  staging:
    threads: 2
    target:
      database: staging.duckdb
      schema: staging
  prod:
    models_dir: prod_models
    target:
      type: postgres
      host: ${STRATA_TEST_PG_HOST}
      database: analytics
      user: strata
      password: ${STRATA_TEST_PG_PASSWORD}
`

func TestLoadConfigWithTarget_Environments(t *testing.T) {
	t.Setenv("STRATA_TEST_PG_HOST", "db.internal")
	t.Setenv("STRATA_TEST_PG_PASSWORD", "secret123")

	cfgPath := writeProject(t, envsProject)
	root := filepath.Dir(cfgPath)

	t.Run("default environment", func(t *testing.T) {
		cfg, err := LoadConfigWithTarget(cfgPath, "", nil)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "dev.duckdb"), cfg.Target.Database)
		assert.Equal(t, 1, cfg.Threads)
	})

	t.Run("staging", func(t *testing.T) {
		cfg, err := LoadConfigWithTarget(cfgPath, "staging", nil)
		require.NoError(t, err)
		assert.Equal(t, "staging", cfg.Environment)
		assert.Equal(t, filepath.Join(root, "staging.duckdb"), cfg.Target.Database)
		assert.Equal(t, "staging", cfg.Target.Schema)
		assert.Equal(t, 2, cfg.Threads)
	})

	t.Run("prod", func(t *testing.T) {
		cfg, err := LoadConfigWithTarget(cfgPath, "prod", nil)
		require.NoError(t, err)
		assert.Equal(t, "postgres", cfg.Target.Type)
		assert.Equal(t, "analytics", cfg.Target.Database)
		assert.Equal(t, "public", cfg.Target.Schema)
		assert.Equal(t, 5432, cfg.Target.Port)
		assert.Equal(t, "db.internal", cfg.Target.Host)
		assert.Equal(t, "secret123", cfg.Target.Password)
		assert.Equal(t, filepath.Join(root, "prod_models"), cfg.ModelsDir)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := LoadConfigWithTarget(cfgPath, "qa", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown target "qa"`)
	})
}

func TestLoadConfig_Precedence(t *testing.T) {
	cfgPath := writeProject(t, "models_dir: from_file\nthreads: 2\n")
	root := filepath.Dir(cfgPath)

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("STRATA_MODELS_DIR", "from_env")
		t.Setenv("STRATA_THREADS", "3")

		cfg, err := LoadConfig(cfgPath, nil)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "from_env"), cfg.ModelsDir)
		assert.Equal(t, 3, cfg.Threads)
	})

	t.Run("flag over env", func(t *testing.T) {
		t.Setenv("STRATA_MODELS_DIR", "from_env")
		flags := testFlags()
		require.NoError(t, flags.Set("models-dir", "from_flag"))
		require.NoError(t, flags.Set("threads", "8"))

		cfg, err := LoadConfig(cfgPath, flags)
		require.NoError(t, err)

		want, err := filepath.Abs("from_flag")
		require.NoError(t, err)
		assert.Equal(t, want, cfg.ModelsDir)
		assert.Equal(t, 8, cfg.Threads)
	})

	t.Run("unset flag keeps env", func(t *testing.T) {
		t.Setenv("STRATA_MODELS_DIR", "from_env")

		cfg, err := LoadConfig(cfgPath, testFlags())
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "from_env"), cfg.ModelsDir)
		assert.Equal(t, 2, cfg.Threads)
	})
}

func TestLoadConfig_StateAndDatabaseFlags(t *testing.T) {
	cfgPath := writeProject(t, "target:\n  type: duckdb\n  database: file.duckdb\n")

	flags := testFlags()
	require.NoError(t, flags.Set("state", "custom/state.db"))
	require.NoError(t, flags.Set("database", ":memory:"))
	require.NoError(t, flags.Set("target", "dev"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	want, err := filepath.Abs("custom/state.db")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.StatePath)
	assert.Equal(t, ":memory:", cfg.Target.Database)
	assert.Equal(t, "duckdb", cfg.Target.Type, "--target must not replace the target section")
}

func TestInferProjectRoot(t *testing.T) {
	dir := t.TempDir()
	modelsDir := filepath.Join(dir, "models")
	require.NoError(t, os.MkdirAll(modelsDir, 0o750))

	flags := testFlags()
	require.NoError(t, flags.Set("project-dir", dir))
	assert.Equal(t, dir, inferProjectRoot(flags))

	flags = testFlags()
	require.NoError(t, flags.Set("models-dir", modelsDir))
	assert.Equal(t, dir, inferProjectRoot(flags))
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("STRATA_TEST_VAR", "value")

	tests := []struct {
		in   string
		want string
	}{
		{"${STRATA_TEST_VAR}", "value"},
		{"prefix_${STRATA_TEST_VAR}_suffix", "prefix_value_suffix"},
		{"${STRATA_TEST_UNSET_VAR}", "${STRATA_TEST_UNSET_VAR}"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandEnvVars(tt.in), tt.in)
	}
}

func TestMergeTargetConfig(t *testing.T) {
	base := &TargetConfig{
		Type:     "duckdb",
		Database: "base.duckdb",
		Schema:   "main",
		Options:  map[string]string{"a": "1"},
	}
	override := &TargetConfig{
		Database: "override.duckdb",
		Options:  map[string]string{"b": "2"},
	}

	merged := MergeTargetConfig(base, override)
	assert.Equal(t, "duckdb", merged.Type)
	assert.Equal(t, "override.duckdb", merged.Database)
	assert.Equal(t, "main", merged.Schema)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, merged.Options)
	assert.Equal(t, map[string]string{"a": "1"}, base.Options, "base must not be modified")

	assert.Same(t, override, MergeTargetConfig(nil, override))
	assert.Same(t, base, MergeTargetConfig(base, nil))
}

func TestConfigContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	shop, err := LoadConfig(writeProject(t, "name: shop\n"), nil)
	require.NoError(t, err)
	blog, err := LoadConfig(writeProject(t, "name: blog\n"), nil)
	require.NoError(t, err)

	// loading a second project leaves the first untouched
	ctx := WithConfig(context.Background(), shop)
	assert.Same(t, shop, FromContext(ctx))
	assert.Equal(t, "shop", FromContext(ctx).Name)
	assert.Same(t, blog, FromContext(WithConfig(ctx, blog)))
	assert.NotEqual(t, shop.ConfigFile, blog.ConfigFile)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"valid", Config{ModelsDir: "models", Threads: 1}, ""},
		{"empty models_dir", Config{Threads: 1}, "models_dir is required"},
		{"zero threads", Config{ModelsDir: "models"}, "threads must be at least 1"},
		{"bad log format", Config{ModelsDir: "models", Threads: 1, LogFormat: "xml"}, "invalid log_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateDirectories(t *testing.T) {
	cfg := &Config{ModelsDir: filepath.Join(t.TempDir(), "missing")}
	err := cfg.ValidateDirectories()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strata init")
}
