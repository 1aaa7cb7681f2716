package assertion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/strata/pkg/core"
	"golang.org/x/sync/errgroup"
)

// Querier runs read queries against the store.
type Querier interface {
	Query(ctx context.Context, sql string) (*core.Rows, error)
}

// errStop cancels pending evaluations in fail-fast mode.
var errStop = errors.New("stopped after first failure")

// Runner evaluates assertions, each independently of the others.
type Runner struct {
	querier  Querier
	dialect  *core.Dialect
	resolve  RelationResolver
	logger   *slog.Logger
	threads  int
	failFast bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithThreads bounds the number of concurrent queries (minimum 1).
func WithThreads(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.threads = n
		}
	}
}

// WithFailFast stops starting new evaluations after the first failing or
// erroring assertion.
func WithFailFast(enabled bool) Option {
	return func(r *Runner) { r.failFast = enabled }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner.
func NewRunner(q Querier, d *core.Dialect, resolve RelationResolver, opts ...Option) *Runner {
	r := &Runner{
		querier: q,
		dialect: d,
		resolve: resolve,
		logger:  slog.New(slog.DiscardHandler),
		threads: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run evaluates all assertions and returns their results in input order.
// A query error marks that assertion as errored and does not stop the
// others. In fail-fast mode, assertions not started before the first
// failure are left out of the results.
func (r *Runner) Run(ctx context.Context, assertions []*core.Assertion) []*core.AssertionResult {
	results := make([]*core.AssertionResult, len(assertions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.threads)

	for i, a := range assertions {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := r.Evaluate(gctx, a)
			results[i] = res
			if r.failFast && !res.Passed() {
				return errStop
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*core.AssertionResult, 0, len(results))
	for _, res := range results {
		if res != nil {
			out = append(out, res)
		}
	}
	return out
}

// Evaluate runs a single assertion.
func (r *Runner) Evaluate(ctx context.Context, a *core.Assertion) *core.AssertionResult {
	start := time.Now()
	res := &core.AssertionResult{Assertion: a}

	query, err := Compile(a, r.dialect, r.resolve)
	if err == nil {
		res.Failures, err = r.count(ctx, query)
	}
	res.Duration = time.Since(start)

	switch {
	case err != nil:
		res.Status = core.AssertionError
		res.Err = err
	case res.Failures == 0:
		res.Status = core.AssertionPass
	case a.Severity == core.SeverityWarn:
		res.Status = core.AssertionWarn
	default:
		res.Status = core.AssertionFail
	}

	r.logger.Debug("test evaluated",
		slog.String("test", a.Name),
		slog.String("status", string(res.Status)),
		slog.Int64("failures", res.Failures),
		slog.Int64("exec_ms", res.Duration.Milliseconds()))
	return res
}

func (r *Runner) count(ctx context.Context, query string) (int64, error) {
	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("test query returned no rows")
	}
	var n int64
	if err := rows.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read violation count: %w", err)
	}
	return n, rows.Err()
}
