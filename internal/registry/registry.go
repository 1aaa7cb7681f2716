// Package registry holds the models of a project and resolves the references
// between them. Construction happens in two phases: Add collects every
// definition, then Resolve checks all references at once so that every
// unresolved name is reported together.
package registry

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/leapstack-labs/strata/internal/config"
	"github.com/leapstack-labs/strata/internal/dag"
	"github.com/leapstack-labs/strata/pkg/core"
)

// ModelRegistry maps model and seed names to their definitions.
type ModelRegistry struct {
	mu sync.RWMutex

	groups *config.GroupTree
	logger *slog.Logger

	// models keeps registration order
	models []*core.Model
	byName map[string]*core.Model

	seeds       []*core.Seed
	seedsByName map[string]*core.Seed

	graph    *dag.Graph
	resolved bool
}

// New creates an empty registry. groups carries the project and group
// defaults (a nil tree means no defaults).
func New(groups *config.GroupTree, logger *slog.Logger) *ModelRegistry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ModelRegistry{
		groups:      groups,
		logger:      logger,
		byName:      make(map[string]*core.Model),
		seedsByName: make(map[string]*core.Seed),
	}
}

// Add registers a model definition. Names must be unique across models and
// seeds.
func (r *ModelRegistry) Add(model *core.Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[model.Name]; ok {
		return &core.ConfigurationError{Kind: core.ErrDuplicateModel, Problems: []core.Problem{{
			Model:  model.Name,
			Source: model.FilePath,
			Detail: fmt.Sprintf("name already defined by %s", existing.FilePath),
		}}}
	}
	if seed, ok := r.seedsByName[model.Name]; ok {
		return &core.ConfigurationError{Kind: core.ErrDuplicateModel, Problems: []core.Problem{{
			Model:  model.Name,
			Source: model.FilePath,
			Detail: fmt.Sprintf("name already defined by seed %s", seed.FilePath),
		}}}
	}

	r.byName[model.Name] = model
	r.models = append(r.models, model)
	r.resolved = false
	return nil
}

// AddSeed registers a seed. Models may reference seeds by name.
func (r *ModelRegistry) AddSeed(seed *core.Seed) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.seedsByName[seed.Name]; ok {
		return core.NewConfigurationError(core.ErrDuplicateModel, seed.Name,
			"seed defined by both %s and %s", existing.FilePath, seed.FilePath)
	}
	if model, ok := r.byName[seed.Name]; ok {
		return core.NewConfigurationError(core.ErrDuplicateModel, seed.Name,
			"seed %s has the same name as model %s", seed.FilePath, model.FilePath)
	}

	r.seedsByName[seed.Name] = seed
	r.seeds = append(r.seeds, seed)
	r.resolved = false
	return nil
}

// Resolve binds every reference, applies group and project defaults, and
// builds the dependency graph. All unresolved references are returned in a
// single ConfigurationError; a cycle is returned as ErrCycle. The registry
// is unchanged when Resolve fails.
func (r *ModelRegistry) Resolve() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var problems []core.Problem
	dependsOn := make(map[string][]string, len(r.models))
	for _, m := range r.models {
		var deps []string
		for _, ref := range m.Refs {
			switch {
			case r.byName[ref] != nil:
				deps = append(deps, ref)
			case r.seedsByName[ref] != nil:
				// seeds are loaded before any model runs
			default:
				problems = append(problems, core.Problem{
					Model:  m.Name,
					Source: m.FilePath,
					Detail: fmt.Sprintf("references unknown model %q", ref),
				})
			}
		}
		dependsOn[m.Name] = deps
	}
	if len(problems) > 0 {
		return &core.ConfigurationError{Kind: core.ErrUnresolvedRef, Problems: problems}
	}

	g := dag.NewGraph()
	for _, m := range r.models {
		g.AddNode(m.Name, m)
	}
	for _, m := range r.models {
		for _, dep := range dependsOn[m.Name] {
			if err := g.AddEdge(dep, m.Name); err != nil {
				return err
			}
		}
	}
	if cycle := g.FindCycle(); cycle != nil {
		return dag.CycleError(cycle)
	}

	for i, m := range r.models {
		m.Order = i
		m.DependsOn = dependsOn[m.Name]
		r.applyDefaults(m)
	}
	r.graph = g
	r.resolved = true

	r.logger.Debug("registry resolved",
		slog.Int("models", len(r.models)),
		slog.Int("seeds", len(r.seeds)),
		slog.Int("edges", g.EdgeCount()))
	return nil
}

// applyDefaults layers materialization, schema and tags:
// model > deepest group > project > built-in default.
func (r *ModelRegistry) applyDefaults(m *core.Model) {
	settings := r.groups.Resolve(m.Group)

	if m.Materialized == "" {
		m.Materialized = settings.Materialized
	}
	if m.Materialized == "" {
		m.Materialized = core.DefaultMaterialization
	}
	if m.Schema == "" {
		m.Schema = settings.Schema
	}
	for _, tag := range settings.Tags {
		if !slices.Contains(m.Tags, tag) {
			m.Tags = append(m.Tags, tag)
		}
	}
}

// Resolved reports whether Resolve has succeeded since the last Add.
func (r *ModelRegistry) Resolved() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolved
}

// Graph returns the dependency graph. It is nil until Resolve succeeds.
func (r *ModelRegistry) Graph() *dag.Graph {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.resolved {
		return nil
	}
	return r.graph
}

// GetModel returns a model by name.
func (r *ModelRegistry) GetModel(name string) (*core.Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// GetSeed returns a seed by name.
func (r *ModelRegistry) GetSeed(name string) (*core.Seed, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.seedsByName[name]
	return s, ok
}

// Models returns all models in registration order.
func (r *ModelRegistry) Models() []*core.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.models)
}

// Seeds returns all seeds in registration order.
func (r *ModelRegistry) Seeds() []*core.Seed {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.seeds)
}

// Count returns the number of registered models.
func (r *ModelRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}
