package commands

import (
	"time"

	"github.com/leapstack-labs/strata/internal/engine"
	"github.com/spf13/cobra"
)

// TestOptions holds options for the test command.
type TestOptions struct {
	Select   string
	FailFast bool
}

// NewTestCommand creates the test command.
func NewTestCommand() *cobra.Command {
	opts := &TestOptions{}

	cmd := &cobra.Command{
		Use:   "test [selection...]",
		Short: "Evaluate tests against materialized models",
		Long: `Evaluate the tests declared in schema.yml files for the selected models.

Every test runs and every failure is reported: not_null, unique,
accepted_values and relationships each count the rows that violate them.
Tests with severity warn are reported without failing the command.`,
		Example: `  # Test every model
  strata test

  # Test one model and everything downstream of it
  strata test stg_orders+

  # Stop at the first failing test
  strata test --fail-fast`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Selection expression (alternative to positional arguments)")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "Stop evaluating tests after the first failure")

	return cmd
}

func runTest(cmd *cobra.Command, args []string, opts *TestOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := cmdCtx.Discover(); err != nil {
		return err
	}

	selection := selectionArg(opts.Select, args)
	start := time.Now()
	result, err := cmdCtx.Engine.Test(cmd.Context(), selection, engine.TestOptions{FailFast: opts.FailFast})
	if result == nil || result.Run == nil {
		return err
	}

	inv := &invocation{
		command:   "test",
		selection: selection,
		run:       result.Run,
		tests:     result.Summary,
		total:     time.Since(start),
		err:       err,
	}
	if renderErr := renderInvocation(cmdCtx.Renderer, inv); renderErr != nil {
		return renderErr
	}
	return err
}
