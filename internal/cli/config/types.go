// Package config provides configuration management for the strata CLI.
//
// This package extends the shared project configuration in internal/config
// with CLI-specific fields and the koanf layering of defaults, project file,
// environment variables and flags.
package config

import (
	"time"

	sharedcfg "github.com/leapstack-labs/strata/internal/config"
	"github.com/leapstack-labs/strata/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = core.TargetConfig

// Config holds all CLI configuration options.
type Config struct {
	Name         string        `koanf:"name"`
	ModelsDir    string        `koanf:"models_dir"`
	SeedsDir     string        `koanf:"seeds_dir"`
	DatabasePath string        `koanf:"database"` // shorthand for target.database
	StatePath    string        `koanf:"state_path"`
	Environment  string        `koanf:"environment"`
	Threads      int           `koanf:"threads"`
	LockTimeout  time.Duration `koanf:"lock_timeout"`
	Verbose      bool          `koanf:"verbose"`
	OutputFormat string        `koanf:"output"`
	LogFormat    string        `koanf:"log_format"`
	Target       *TargetConfig `koanf:"target"`
	// Models is the raw group tree; Groups holds it parsed
	Models       map[string]any       `koanf:"models"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths resolve against
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the strata.yaml that was loaded, empty when none was found
	ConfigFile string `koanf:"-"`
	// Groups is the parsed models group tree
	Groups *sharedcfg.GroupTree `koanf:"-"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	ModelsDir string        `koanf:"models_dir"`
	SeedsDir  string        `koanf:"seeds_dir"`
	Threads   int           `koanf:"threads"`
	Target    *TargetConfig `koanf:"target"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultModelsDir = sharedcfg.DefaultModelsDir
	DefaultSeedsDir  = sharedcfg.DefaultSeedsDir
	DefaultStateFile = sharedcfg.DefaultStateFile
	DefaultEnv       = sharedcfg.DefaultEnv
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogFormat = "text"
)
