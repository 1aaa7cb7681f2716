package commands

import (
	"context"
	"time"

	"github.com/leapstack-labs/strata/internal/engine"
	"github.com/spf13/cobra"
)

// BuildOptions holds options for the build command.
type BuildOptions struct {
	Select   string
	Watch    bool
	FailFast bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build [selection...]",
		Short: "Load seeds, run models, then test them",
		Long: `Load every seed, materialize the selected models in dependency order, then
evaluate the tests attached to those models.

Tests are not evaluated when a model fails. The command exits non-zero when
a model fails or a test with error severity fails.`,
		Example: `  # Build the whole project
  strata build

  # Build the marts and everything they need
  strata build +tag:marts

  # Rebuild on every change
  strata build --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Selection expression (alternative to positional arguments)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Rebuild when models or seeds change")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "Stop evaluating tests after the first failure")

	return cmd
}

func runBuild(cmd *cobra.Command, args []string, opts *BuildOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	selection := selectionArg(opts.Select, args)
	once := func(ctx context.Context) error {
		if _, err := cmdCtx.Discover(); err != nil {
			return err
		}

		start := time.Now()
		result, err := cmdCtx.Engine.Build(ctx, selection, engine.TestOptions{FailFast: opts.FailFast})
		if result == nil || result.Run == nil {
			return err
		}
		inv := &invocation{
			command:   "build",
			selection: selection,
			run:       result.Run,
			seeds:     result.Seeds,
			models:    result.Models,
			tests:     result.Tests,
			total:     time.Since(start),
			err:       err,
		}
		if renderErr := renderInvocation(cmdCtx.Renderer, inv); renderErr != nil {
			return renderErr
		}
		return err
	}

	if opts.Watch {
		return watchProject(cmd.Context(), cmdCtx, once)
	}
	return once(cmd.Context())
}
