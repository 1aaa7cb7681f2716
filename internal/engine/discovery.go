package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/strata/internal/loader"
	"github.com/leapstack-labs/strata/internal/registry"
	"github.com/leapstack-labs/strata/pkg/core"
)

// DiscoveryResult contains statistics about the discovery run.
type DiscoveryResult struct {
	Models   int
	Seeds    int
	Tests    int
	Edges    int
	Duration time.Duration
}

// Summary returns a human-readable summary.
func (r *DiscoveryResult) Summary() string {
	return fmt.Sprintf("%d models, %d seeds, %d tests, %d edges (%s)",
		r.Models, r.Seeds, r.Tests, r.Edges, r.Duration.Round(time.Millisecond))
}

// Discover reads the project from disk and resolves it. Every problem found
// is a *core.ConfigurationError; nothing is executed. On failure the engine
// keeps its previous project.
func (e *Engine) Discover() (*DiscoveryResult, error) {
	start := time.Now()
	e.logger.Debug("starting discovery", slog.String("models_dir", e.modelsDir))

	loaded, err := loader.New(e.modelsDir, e.seedsDir, e.logger).Load()
	if err != nil {
		return nil, err
	}

	reg := registry.New(e.groups, e.logger)
	var duplicates []core.Problem
	for _, seed := range loaded.Seeds {
		if err := reg.AddSeed(seed); err != nil {
			duplicates = append(duplicates, problemsOf(err)...)
		}
	}
	for _, m := range loaded.Models {
		if err := reg.Add(m); err != nil {
			duplicates = append(duplicates, problemsOf(err)...)
		}
	}
	if len(duplicates) > 0 {
		return nil, &core.ConfigurationError{Kind: core.ErrDuplicateModel, Problems: duplicates}
	}

	if err := reg.Resolve(); err != nil {
		return nil, err
	}

	assertions, err := reg.ResolveAssertions(loaded.Assertions)
	if err != nil {
		return nil, err
	}

	e.registry = reg
	e.graph = reg.Graph()
	e.assertions = assertions

	result := &DiscoveryResult{
		Models:   reg.Count(),
		Seeds:    len(loaded.Seeds),
		Tests:    len(assertions),
		Edges:    e.graph.EdgeCount(),
		Duration: time.Since(start),
	}
	e.logger.Info("discovery completed",
		slog.Int("models", result.Models),
		slog.Int("seeds", result.Seeds),
		slog.Int("tests", result.Tests),
		slog.Int64("duration_ms", result.Duration.Milliseconds()))
	return result, nil
}

func problemsOf(err error) []core.Problem {
	var cfgErr *core.ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr.Problems
	}
	return []core.Problem{{Detail: err.Error()}}
}

// relation returns the relation a model or seed name materializes to.
func (e *Engine) relation(name string) (core.RelationName, bool) {
	if e.registry == nil {
		return core.RelationName{}, false
	}
	if m, ok := e.registry.GetModel(name); ok {
		return m.Relation(e.schema), true
	}
	if _, ok := e.registry.GetSeed(name); ok {
		return core.RelationName{Schema: e.schema, Name: name}, true
	}
	return core.RelationName{}, false
}

// RenderModel returns the SQL body of a model with every ref replaced by
// its quoted relation.
func (e *Engine) RenderModel(m *core.Model, d *core.Dialect) (string, error) {
	return loader.RenderRefs(m.SQL, func(name string) (string, bool) {
		rel, ok := e.relation(name)
		if !ok {
			return "", false
		}
		return d.QualifiedName(rel), true
	})
}

func (e *Engine) requireDiscovered() error {
	if e.graph == nil {
		return errors.New("project not discovered: call Discover first")
	}
	return nil
}
