package registry

import (
	"fmt"

	"github.com/leapstack-labs/strata/internal/loader"
	"github.com/leapstack-labs/strata/pkg/core"
)

// ResolveAssertions binds declared tests to registered models. Every
// invalid declaration is reported in one ConfigurationError with
// ErrInvalidAssertion. Assertions keep declaration order.
func (r *ModelRegistry) ResolveAssertions(decls []loader.AssertionDecl) ([]*core.Assertion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		problems   []core.Problem
		assertions []*core.Assertion
	)
	seen := make(map[string]int)

	for _, d := range decls {
		a, err := r.bind(d)
		if err != nil {
			problems = append(problems, core.Problem{Model: d.Model, Source: d.Source, Detail: err.Error()})
			continue
		}

		seen[a.Name]++
		if n := seen[a.Name]; n > 1 {
			a.Name = fmt.Sprintf("%s_%d", a.Name, n)
		}
		assertions = append(assertions, a)
	}

	if len(problems) > 0 {
		return nil, &core.ConfigurationError{Kind: core.ErrInvalidAssertion, Problems: problems}
	}
	return assertions, nil
}

func (r *ModelRegistry) bind(d loader.AssertionDecl) (*core.Assertion, error) {
	kind, err := core.ParseAssertionKind(d.Kind)
	if err != nil {
		return nil, err
	}
	if _, ok := r.byName[d.Model]; !ok {
		return nil, fmt.Errorf("%s test declared on unknown model %q", kind, d.Model)
	}
	if d.Column == "" {
		return nil, fmt.Errorf("%s test has no column", kind)
	}
	severity, err := core.ParseSeverity(d.Severity)
	if err != nil {
		return nil, err
	}

	a := &core.Assertion{
		Name:     core.AssertionName(kind, d.Model, d.Column),
		Model:    d.Model,
		Column:   d.Column,
		Kind:     kind,
		Severity: severity,
		Where:    d.Where,
		Source:   d.Source,
	}

	switch kind {
	case core.AssertAcceptedValues:
		if len(d.Values) == 0 {
			return nil, fmt.Errorf("accepted_values test on %s.%s has no values", d.Model, d.Column)
		}
		a.Values = d.Values
		a.Quote = d.Quote == nil || *d.Quote
	case core.AssertRelationships:
		if d.To == "" {
			return nil, fmt.Errorf("relationships test on %s.%s has no `to`", d.Model, d.Column)
		}
		if d.Field == "" {
			return nil, fmt.Errorf("relationships test on %s.%s has no `field`", d.Model, d.Column)
		}
		to := loader.ParseRefExpr(d.To)
		_, isModel := r.byName[to]
		_, isSeed := r.seedsByName[to]
		if !isModel && !isSeed {
			return nil, fmt.Errorf("relationships test on %s.%s references unknown model %q", d.Model, d.Column, to)
		}
		a.ToModel = to
		a.ToColumn = d.Field
	case core.AssertNotNull, core.AssertUnique:
	}

	return a, nil
}
