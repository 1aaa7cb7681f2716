package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/strata/internal/cli/output"
	"github.com/leapstack-labs/strata/pkg/core"
	"github.com/spf13/cobra"
)

// configFileName is the project file init writes.
const configFileName = "strata.yaml"

// InitOutput is the JSON result of init.
type InitOutput struct {
	Directory string   `json:"directory"`
	Created   []string `json:"created"`
	Skipped   []string `json:"skipped,omitempty"`
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create an example project",
		Long: `Create a working example project in the given directory (default: the
current directory).

The project follows the usual layering: two CSV seeds, staging views that
rename their columns, a core table joining them, and schema.yml files with
tests for each layer. It runs against a local DuckDB file.

Existing files are kept unless --force is given.`,
		Example: `  # Scaffold into a new directory and build it
  strata init jaffle
  cd jaffle && strata build

  # Overwrite an existing scaffold
  strata init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	r := initRenderer(cmd)

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if _, err := os.Stat(filepath.Join(dir, configFileName)); err == nil && !force {
		return fmt.Errorf("%s already exists in %s; use --force to overwrite", configFileName, dir)
	}

	files, err := writeTemplate("example", dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	out := InitOutput{Directory: dir, Created: []string{}}
	for _, f := range files {
		if f.Skipped {
			out.Skipped = append(out.Skipped, f.Path)
			continue
		}
		out.Created = append(out.Created, f.Path)
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, "Initialized "+dir)
	for _, f := range files {
		if f.Skipped {
			r.StatusLine(f.Path, string(core.ModelRunStatusSkipped), "exists")
			continue
		}
		r.StatusLine(f.Path, string(core.ModelRunStatusSuccess), "")
	}
	r.Println("")
	r.Println("Next steps:")
	if dir != "." {
		r.Printf("  cd %s\n", dir)
	}
	r.Println("  strata build     Load seeds, run models and test them")
	r.Println("  strata list      Show models in execution order")
	r.Println("  strata query     Explore the results")
	return nil
}

// initRenderer builds a renderer from the --output flag; init runs without
// loading a project config.
func initRenderer(cmd *cobra.Command) *output.Renderer {
	mode := output.ModeAuto
	if f := cmd.Flag("output"); f != nil {
		if m, err := output.ParseMode(f.Value.String()); err == nil {
			mode = m
		}
	}
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
}
