// Package config provides the shared project configuration pieces of strata:
// defaults, target validation, project root discovery and the models group
// tree. It is decoupled from CLI concerns so the engine can use it directly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/strata/pkg/adapter"
	"github.com/leapstack-labs/strata/pkg/core"
)

// Default configuration values.
const (
	DefaultModelsDir   = "models"
	DefaultSeedsDir    = "seeds"
	DefaultStateFile   = ".strata/state.db"
	DefaultEnv         = "dev"
	DefaultTargetType  = "duckdb"
	DefaultThreads     = 1
	DefaultLockTimeout = time.Hour
)

// ConfigFileNames are the accepted project file names, in lookup order.
var ConfigFileNames = []string{"strata.yaml", "strata.yml"}

// FindConfigFile returns the project file in dir, or "" when there is none.
func FindConfigFile(dir string) string {
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// FindProjectRoot walks up from startDir, at most maxLevels directories, to
// find a directory containing a project file. Returns "" if not found.
func FindProjectRoot(startDir string, maxLevels int) string {
	dir := startDir
	for i := 0; i < maxLevels; i++ {
		if FindConfigFile(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// DefaultSchemaForType returns the default schema of a registered target
// type, or "main" when the type is unknown.
func DefaultSchemaForType(dbType string) string {
	if d, ok := adapter.Lookup(dbType); ok && d.DefaultSchema != "" {
		return d.DefaultSchema
	}
	return "main"
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *core.TargetConfig) {
	if t == nil {
		return
	}
	t.Type = strings.ToLower(t.Type)

	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
	if d, ok := adapter.Lookup(t.Type); ok && t.Port == 0 {
		t.Port = d.DefaultPort
	}
}

// ValidateTarget checks the target against the adapter registry.
func ValidateTarget(t *core.TargetConfig) error {
	if t == nil || t.Type == "" {
		return fmt.Errorf("target type is required")
	}

	if _, ok := adapter.Lookup(t.Type); !ok {
		return &adapter.UnknownAdapterError{Type: t.Type, Available: adapter.Names()}
	}
	return nil
}
