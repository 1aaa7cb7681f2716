package engine

// run.go - Execution orchestration for running models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leapstack-labs/strata/internal/selector"
	"github.com/leapstack-labs/strata/pkg/core"
	"golang.org/x/sync/errgroup"
)

// RunResult is the outcome of materializing a selection.
type RunResult struct {
	Run *core.Run
	// Models holds one result per selected model, in execution order
	Models   []*core.ModelResult
	Duration time.Duration
}

// Count returns the number of model results with the given status.
func (r *RunResult) Count(status core.ModelRunStatus) int {
	n := 0
	for _, m := range r.Models {
		if m.Status == status {
			n++
		}
	}
	return n
}

// plannedModel is a selected model with its recorded model run.
type plannedModel struct {
	model    *core.Model
	modelRun *core.ModelRun
	result   *core.ModelResult
}

// Select resolves a selection expression to models in execution order.
func (e *Engine) Select(expr string) ([]*core.Model, error) {
	if err := e.requireDiscovered(); err != nil {
		return nil, err
	}
	names, err := selector.Select(e.graph, expr)
	if err != nil {
		return nil, err
	}
	models := make([]*core.Model, len(names))
	for i, name := range names {
		models[i], _ = e.registry.GetModel(name)
	}
	return models, nil
}

// Run materializes the selected models in dependency order. The first
// failing model aborts the run: it is reported as a
// *core.MaterializationError, later models are recorded as skipped, and
// relations completed before it are left in place.
func (e *Engine) Run(ctx context.Context, selection string) (*RunResult, error) {
	models, err := e.Select(selection)
	if err != nil {
		return nil, err
	}

	result := &RunResult{}
	err = e.withLock(ctx, "run", func() error {
		if err := e.ensureDBConnected(ctx); err != nil {
			return err
		}

		run, err := e.store.CreateRun(ctx, "run", selection, e.environment)
		if err != nil {
			return fmt.Errorf("failed to create run: %w", err)
		}
		result.Run = run

		var runErr error
		result.Models, result.Duration, runErr = e.executeModels(ctx, run.ID, models)
		e.completeRun(ctx, run, runErr)
		return runErr
	})
	return result, err
}

// executeModels runs the planned models. With one thread they run in the
// given order; with more, models of the same execution level run
// concurrently and a level starts only after the previous one finished.
func (e *Engine) executeModels(ctx context.Context, runID string, models []*core.Model) ([]*core.ModelResult, time.Duration, error) {
	start := time.Now()
	plan := make([]*plannedModel, len(models))
	byName := make(map[string]*plannedModel, len(models))

	for i, m := range models {
		rel := m.Relation(e.schema)
		mr := &core.ModelRun{
			RunID:           runID,
			ModelName:       m.Name,
			Materialization: m.Materialized,
			Relation:        rel.String(),
			Status:          core.ModelRunStatusPending,
			RowsAffected:    -1,
		}
		if err := e.store.RecordModelRun(ctx, mr); err != nil {
			e.logger.Warn("failed to record model run", slog.String("model", m.Name), slog.String("error", err.Error()))
		}
		plan[i] = &plannedModel{
			model:    m,
			modelRun: mr,
			result: &core.ModelResult{
				Model:           m.Name,
				Relation:        rel.String(),
				Materialization: m.Materialized,
				Status:          core.ModelRunStatusPending,
				Rows:            -1,
			},
		}
		byName[m.Name] = plan[i]
	}

	var err error
	if e.threads <= 1 {
		err = e.executeSequential(ctx, plan)
	} else {
		err = e.executeLevels(ctx, plan, byName)
	}

	results := make([]*core.ModelResult, len(plan))
	for i, p := range plan {
		results[i] = p.result
	}
	return results, time.Since(start), err
}

func (e *Engine) executeSequential(ctx context.Context, plan []*plannedModel) error {
	for i, p := range plan {
		if err := ctx.Err(); err != nil {
			e.skipRemaining(ctx, plan[i:], "run cancelled")
			return err
		}
		if err := e.executeOne(ctx, p); err != nil {
			e.skipRemaining(ctx, plan[i+1:], fmt.Sprintf("upstream model %s failed", p.model.Name))
			return err
		}
	}
	return nil
}

func (e *Engine) executeLevels(ctx context.Context, plan []*plannedModel, byName map[string]*plannedModel) error {
	// levels of the full graph keep ordering through unselected models
	levels, err := e.graph.Levels()
	if err != nil {
		return err
	}

	var (
		failed   atomic.Bool
		firstErr error
		errMu    sync.Mutex
	)

	for _, level := range levels {
		var batch []*plannedModel
		for _, name := range level {
			if p, ok := byName[name]; ok {
				batch = append(batch, p)
			}
		}
		if len(batch) == 0 {
			continue
		}

		if failed.Load() || ctx.Err() != nil {
			e.skipRemaining(ctx, batch, "run aborted")
			continue
		}

		var g errgroup.Group
		g.SetLimit(e.threads)
		for i, p := range batch {
			g.Go(func() error {
				if failed.Load() || ctx.Err() != nil {
					e.skipRemaining(ctx, batch[i:i+1], "run aborted")
					return nil
				}
				if err := e.executeOne(ctx, p); err != nil {
					failed.Store(true)
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// executeOne materializes a single planned model and records the outcome.
func (e *Engine) executeOne(ctx context.Context, p *plannedModel) error {
	m := p.model
	e.updateModelRun(ctx, p, core.ModelRunStatusRunning, -1, "", 0)

	e.logger.Debug("executing model",
		slog.String("model", m.Name),
		slog.String("materialization", string(m.Materialized)))

	start := time.Now()
	rows, err := e.materialize(ctx, m)
	elapsed := time.Since(start)
	p.result.Duration = elapsed

	if err != nil {
		matErr := &core.MaterializationError{
			Model:           m.Name,
			Relation:        p.result.Relation,
			Materialization: m.Materialized,
			Err:             err,
		}
		p.result.Status = core.ModelRunStatusFailed
		p.result.Err = matErr
		e.updateModelRun(ctx, p, core.ModelRunStatusFailed, -1, err.Error(), elapsed.Milliseconds())
		e.logger.Debug("model execution failed", slog.String("model", m.Name), slog.String("error", err.Error()))
		return matErr
	}

	p.result.Status = core.ModelRunStatusSuccess
	p.result.Rows = rows
	e.updateModelRun(ctx, p, core.ModelRunStatusSuccess, rows, "", elapsed.Milliseconds())
	e.logger.Debug("model executed",
		slog.String("model", m.Name),
		slog.Int64("rows", rows),
		slog.Int64("exec_ms", elapsed.Milliseconds()))
	return nil
}

func (e *Engine) skipRemaining(ctx context.Context, plan []*plannedModel, reason string) {
	for _, p := range plan {
		p.result.Status = core.ModelRunStatusSkipped
		e.updateModelRun(ctx, p, core.ModelRunStatusSkipped, -1, reason, 0)
	}
}

func (e *Engine) updateModelRun(ctx context.Context, p *plannedModel, status core.ModelRunStatus, rows int64, errMsg string, ms int64) {
	if p.modelRun.ID == "" {
		return
	}
	// the record outlives a cancelled run
	if err := e.store.UpdateModelRun(context.WithoutCancel(ctx), p.modelRun.ID, status, rows, errMsg, ms); err != nil {
		e.logger.Warn("failed to update model run", slog.String("model", p.model.Name), slog.String("error", err.Error()))
	}
}

// completeRun records the final status of a run.
func (e *Engine) completeRun(ctx context.Context, run *core.Run, runErr error) {
	status := core.RunStatusCompleted
	msg := ""
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		status = core.RunStatusCancelled
		msg = runErr.Error()
	default:
		status = core.RunStatusFailed
		msg = runErr.Error()
	}

	if err := e.store.CompleteRun(context.WithoutCancel(ctx), run.ID, status, msg); err != nil {
		e.logger.Warn("failed to complete run", slog.String("run_id", run.ID), slog.String("error", err.Error()))
	}
	run.Status = status
	run.Error = msg

	e.logger.Info("run finished", slog.String("run_id", run.ID), slog.String("status", string(status)))
}
