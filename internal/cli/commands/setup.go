package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/strata/internal/cli/config"
	"github.com/leapstack-labs/strata/internal/cli/output"
	intconfig "github.com/leapstack-labs/strata/internal/config"
	"github.com/leapstack-labs/strata/internal/engine"
	"github.com/spf13/cobra"

	// registered target adapters
	_ "github.com/leapstack-labs/strata/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/strata/pkg/adapters/postgres"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	eng, err := createEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := eng.Close(); err != nil {
			logger.Warn("failed to close engine", slog.String("error", err.Error()))
		}
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Renderer: newRenderer(cmd, cfg),
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need database access.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig(cmd.Context())
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: newRenderer(cmd, cfg),
	}
}

func newRenderer(cmd *cobra.Command, cfg *config.Config) *output.Renderer {
	mode, err := output.ParseMode(cfg.OutputFormat)
	if err != nil {
		mode = output.ModeAuto
	}
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
}

// Discover checks the models directory exists and discovers the project.
func (c *CommandContext) Discover() (*engine.DiscoveryResult, error) {
	if err := c.Cfg.ValidateDirectories(); err != nil {
		return nil, err
	}
	result, err := c.Engine.Discover()
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("project discovered", slog.String("summary", result.Summary()))
	return result, nil
}

// getConfig returns the configuration the root command stored in ctx, or
// defaults when it did not load one.
func getConfig(ctx context.Context) *config.Config {
	if cfg := config.FromContext(ctx); cfg != nil {
		return cfg
	}
	return &config.Config{
		ModelsDir:    config.DefaultModelsDir,
		SeedsDir:     config.DefaultSeedsDir,
		StatePath:    config.DefaultStateFile,
		Environment:  config.DefaultEnv,
		Threads:      intconfig.DefaultThreads,
		LockTimeout:  intconfig.DefaultLockTimeout,
		OutputFormat: config.DefaultOutput,
		Target:       &config.TargetConfig{Type: intconfig.DefaultTargetType},
	}
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	if cfg.StatePath != ":memory:" {
		if stateDir := filepath.Dir(cfg.StatePath); stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	engineCfg := engine.Config{
		ModelsDir:   cfg.ModelsDir,
		SeedsDir:    cfg.SeedsDir,
		StatePath:   cfg.StatePath,
		Environment: cfg.Environment,
		Groups:      cfg.Groups,
		Threads:     cfg.Threads,
		LockTimeout: cfg.LockTimeout,
		Logger:      logger,
	}
	if cfg.Target != nil {
		engineCfg.Target = *cfg.Target
	}

	return engine.New(engineCfg)
}

// selectionArg joins positional selection arguments with --select.
func selectionArg(flag string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	if s := strings.TrimSpace(flag); s != "" {
		parts = append(parts, s)
	}
	for _, a := range args {
		if s := strings.TrimSpace(a); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// isCancelled reports whether err is the interrupt that stopped a command.
func isCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
