package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/strata/internal/assertion"
	"github.com/leapstack-labs/strata/pkg/core"
)

// BuildResult is the outcome of a build: seeds, models, then tests.
type BuildResult struct {
	Run    *core.Run
	Seeds  []SeedResult
	Models []*core.ModelResult
	// Tests is nil when models failed and tests never ran
	Tests    *assertion.Summary
	Duration time.Duration
}

// Build loads seeds, materializes the selection, then evaluates its tests,
// all under one lock and one recorded run. Tests are not evaluated when a
// model failed.
func (e *Engine) Build(ctx context.Context, selection string, opts TestOptions) (*BuildResult, error) {
	models, err := e.Select(selection)
	if err != nil {
		return nil, err
	}

	result := &BuildResult{}
	err = e.withLock(ctx, "build", func() error {
		if err := e.ensureDBConnected(ctx); err != nil {
			return err
		}

		run, err := e.store.CreateRun(ctx, "build", selection, e.environment)
		if err != nil {
			return fmt.Errorf("failed to create run: %w", err)
		}
		result.Run = run
		start := time.Now()

		buildErr := e.build(ctx, run.ID, models, opts, result)
		result.Duration = time.Since(start)
		e.completeRun(ctx, run, buildErr)
		return buildErr
	})
	return result, err
}

func (e *Engine) build(ctx context.Context, runID string, models []*core.Model, opts TestOptions, result *BuildResult) error {
	var err error
	result.Seeds, err = e.LoadSeeds(ctx)
	if err != nil {
		return err
	}

	result.Models, _, err = e.executeModels(ctx, runID, models)
	if err != nil {
		return err
	}

	result.Tests = e.evaluateTests(ctx, runID, models, opts)
	if err := result.Tests.Err(); err != nil {
		return err
	}
	return ctx.Err()
}
