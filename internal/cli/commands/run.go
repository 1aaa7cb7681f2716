package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Select string
	Watch  bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [selection...]",
		Short: "Materialize models in dependency order",
		Long: `Materialize the selected models as views or tables, in dependency order.

The first model that fails stops the run: models that already completed are
kept, the rest are reported as skipped and the command exits non-zero.

Selection syntax:
  *          every model (default)
  name       a single model
  +name      the model and everything it depends on
  name+      the model and everything that depends on it
  +name+     both
  tag:daily  every model tagged daily`,
		Example: `  # Run all models
  strata run

  # Run a model and its upstream dependencies
  strata run +customer_orders

  # Run with JSON output for CI/CD integration
  strata run -s stg_orders+ --output json

  # Re-run whenever a model or seed changes
  strata run --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Selection expression (alternative to positional arguments)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run when models or seeds change")

	return cmd
}

func runRun(cmd *cobra.Command, args []string, opts *RunOptions) error {
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
		result, err := cmdCtx.Engine.Run(ctx, selection)
		if result == nil || result.Run == nil {
			return err
		}
		inv := &invocation{
			command:   "run",
			selection: selection,
			run:       result.Run,
			models:    result.Models,
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
