package assertion

import "github.com/leapstack-labs/strata/pkg/core"

// Summary aggregates the results of a test run.
type Summary struct {
	Results []*core.AssertionResult
	Passed  int
	Failed  int
	Warned  int
	Errored int
}

// Summarize counts results by status.
func Summarize(results []*core.AssertionResult) *Summary {
	s := &Summary{Results: results}
	for _, r := range results {
		switch r.Status {
		case core.AssertionPass:
			s.Passed++
		case core.AssertionFail:
			s.Failed++
		case core.AssertionWarn:
			s.Warned++
		case core.AssertionError:
			s.Errored++
		}
	}
	return s
}

// FailedResults returns every failing or erroring result, in order.
func (s *Summary) FailedResults() []*core.AssertionResult {
	var failed []*core.AssertionResult
	for _, r := range s.Results {
		if !r.Passed() {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err returns an *core.AssertionFailure listing every failure, or nil
// when the run passed.
func (s *Summary) Err() error {
	failed := s.FailedResults()
	if len(failed) == 0 {
		return nil
	}
	return &core.AssertionFailure{Failed: failed}
}
