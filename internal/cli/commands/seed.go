package commands

import (
	"time"

	"github.com/leapstack-labs/strata/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load seed data from CSV files",
		Long: `Load every CSV file in the seeds directory into the target as a table named
after the file. Existing seed tables are replaced.

Seeds are typically used for reference data like country codes, status enums,
or small lookup tables that don't change frequently. Models reference them
with {{ ref('file_name') }} like any other model.`,
		Example: `  # Load all seeds (auto-detect output format)
  strata seed

  # Load seeds as JSON
  strata seed --output json

  # Load seeds from a specific directory
  strata seed --seeds-dir ./data/seeds`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd)
		},
	}

	return cmd
}

func runSeed(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := cmdCtx.Discover(); err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if len(cmdCtx.Engine.Seeds()) == 0 && r.EffectiveMode() != output.ModeJSON {
		r.Header(1, "Seed")
		r.Muted("No seed files found in " + cmdCtx.Cfg.SeedsDir)
		return nil
	}

	start := time.Now()
	run, seeds, err := cmdCtx.Engine.Seed(cmd.Context())
	if run == nil {
		return err
	}
	inv := &invocation{
		command: "seed",
		run:     run,
		seeds:   seeds,
		total:   time.Since(start),
		err:     err,
	}
	if renderErr := renderInvocation(r, inv); renderErr != nil {
		return renderErr
	}
	return err
}
