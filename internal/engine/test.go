package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/strata/internal/assertion"
	"github.com/leapstack-labs/strata/pkg/core"
)

// TestResult is the outcome of evaluating the tests of a selection.
type TestResult struct {
	Run      *core.Run
	Summary  *assertion.Summary
	Duration time.Duration
}

// TestOptions controls test evaluation.
type TestOptions struct {
	// FailFast stops starting tests after the first failure
	FailFast bool
}

// Test evaluates every test attached to a selected model. All failures are
// collected into a single *core.AssertionFailure; warn-severity failures
// are reported in the summary but do not fail the invocation.
func (e *Engine) Test(ctx context.Context, selection string, opts TestOptions) (*TestResult, error) {
	models, err := e.Select(selection)
	if err != nil {
		return nil, err
	}

	result := &TestResult{}
	err = e.withLock(ctx, "test", func() error {
		if err := e.ensureDBConnected(ctx); err != nil {
			return err
		}

		run, err := e.store.CreateRun(ctx, "test", selection, e.environment)
		if err != nil {
			return fmt.Errorf("failed to create run: %w", err)
		}
		result.Run = run

		start := time.Now()
		result.Summary = e.evaluateTests(ctx, run.ID, models, opts)
		result.Duration = time.Since(start)

		testErr := result.Summary.Err()
		if testErr == nil {
			testErr = ctx.Err()
		}
		e.completeRun(ctx, run, testErr)
		return testErr
	})
	return result, err
}

// SelectTests returns the tests attached to the given models, in
// declaration order.
func (e *Engine) SelectTests(models []*core.Model) []*core.Assertion {
	selected := make(map[string]bool, len(models))
	for _, m := range models {
		selected[m.Name] = true
	}
	var out []*core.Assertion
	for _, a := range e.assertions {
		if selected[a.Model] {
			out = append(out, a)
		}
	}
	return out
}

// evaluateTests runs the tests of the models and records every result
// against the run.
func (e *Engine) evaluateTests(ctx context.Context, runID string, models []*core.Model, opts TestOptions) *assertion.Summary {
	tests := e.SelectTests(models)
	e.logger.Debug("running tests", slog.Int("count", len(tests)), slog.Bool("fail_fast", opts.FailFast))

	runner := assertion.NewRunner(e.db, e.db.Dialect(), e.relation,
		assertion.WithThreads(e.threads),
		assertion.WithFailFast(opts.FailFast),
		assertion.WithLogger(e.logger))
	results := runner.Run(ctx, tests)

	for _, r := range results {
		tr := &core.TestRun{
			RunID:       runID,
			Name:        r.Assertion.Name,
			ModelName:   r.Assertion.Model,
			ColumnName:  r.Assertion.Column,
			Kind:        r.Assertion.Kind,
			Severity:    r.Assertion.Severity,
			Status:      r.Status,
			Failures:    r.Failures,
			ExecutionMS: r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			tr.Error = r.Err.Error()
		}
		if err := e.store.RecordTestResult(context.WithoutCancel(ctx), tr); err != nil {
			e.logger.Warn("failed to record test result", slog.String("test", r.Assertion.Name), slog.String("error", err.Error()))
		}
	}

	summary := assertion.Summarize(results)
	e.logger.Info("tests finished",
		slog.Int("passed", summary.Passed),
		slog.Int("failed", summary.Failed),
		slog.Int("warned", summary.Warned),
		slog.Int("errored", summary.Errored))
	return summary
}
