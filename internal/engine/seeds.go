package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/strata/pkg/core"
)

// SeedResult reports one loaded seed.
type SeedResult struct {
	Seed     *core.Seed
	Relation string
	Duration time.Duration
}

// Seed loads every seed under the project lock and records the invocation.
func (e *Engine) Seed(ctx context.Context) (*core.Run, []SeedResult, error) {
	if err := e.requireDiscovered(); err != nil {
		return nil, nil, err
	}

	var (
		run     *core.Run
		results []SeedResult
	)
	err := e.withLock(ctx, "seed", func() error {
		var err error
		run, err = e.store.CreateRun(ctx, "seed", "", e.environment)
		if err != nil {
			return fmt.Errorf("failed to create run: %w", err)
		}

		results, err = e.LoadSeeds(ctx)
		e.completeRun(ctx, run, err)
		return err
	})
	return run, results, err
}

// LoadSeeds loads all discovered seeds into the store, replacing existing
// relations. It stops at the first seed that fails.
func (e *Engine) LoadSeeds(ctx context.Context) ([]SeedResult, error) {
	seeds := e.Seeds()
	if len(seeds) == 0 {
		return nil, nil
	}

	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	if err := e.ensureSchema(ctx, e.schema); err != nil {
		return nil, err
	}

	results := make([]SeedResult, 0, len(seeds))
	for _, seed := range seeds {
		start := time.Now()
		rel := core.RelationName{Schema: e.schema, Name: seed.Name}

		e.logger.Debug("loading seed", slog.String("seed", seed.Name), slog.String("path", seed.FilePath))
		if err := e.db.LoadCSV(ctx, rel, seed.FilePath); err != nil {
			return results, fmt.Errorf("failed to load seed %s: %w", seed.Name, err)
		}
		results = append(results, SeedResult{Seed: seed, Relation: rel.String(), Duration: time.Since(start)})
	}

	e.logger.Info("seeds loaded", slog.Int("count", len(results)))
	return results, nil
}
