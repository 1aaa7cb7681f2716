// Package assertion compiles column tests to SQL and evaluates them.
//
// Every compiled query returns a single integer: the number of rows that
// violate the assertion. Zero means pass.
package assertion

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/strata/pkg/core"
)

// RelationResolver maps a model or seed name to its relation in the store.
type RelationResolver func(name string) (core.RelationName, bool)

// Compile renders the violation-count query for a.
//
//   - not_null: rows where the column is null
//   - unique: every row whose non-null value appears more than once
//   - accepted_values: rows whose non-null value is outside the set
//   - relationships: rows whose non-null value has no match in the target
//
// A Where predicate restricts the tested rows, never the relationships
// target.
func Compile(a *core.Assertion, d *core.Dialect, resolve RelationResolver) (string, error) {
	rel, ok := resolve(a.Model)
	if !ok {
		return "", fmt.Errorf("no relation for model %q", a.Model)
	}

	from := d.QualifiedName(rel) + " AS t"
	if a.Where != "" {
		from = fmt.Sprintf("(SELECT * FROM %s WHERE %s) AS t", d.QualifiedName(rel), a.Where)
	}
	col := "t." + d.QuoteIdent(a.Column)

	switch a.Kind {
	case core.AssertNotNull:
		return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", from, col), nil

	case core.AssertUnique:
		return fmt.Sprintf(
			"SELECT CAST(COALESCE(SUM(n), 0) AS BIGINT) FROM (SELECT %s, COUNT(*) AS n FROM %s WHERE %s IS NOT NULL GROUP BY %s HAVING COUNT(*) > 1) AS dup",
			col, from, col, col), nil

	case core.AssertAcceptedValues:
		if len(a.Values) == 0 {
			return "", fmt.Errorf("accepted_values test %s has no values", a.Name)
		}
		values := make([]string, len(a.Values))
		for i, v := range a.Values {
			if a.Quote {
				values[i] = d.QuoteString(v)
			} else {
				values[i] = v
			}
		}
		return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL AND %s NOT IN (%s)",
			from, col, col, strings.Join(values, ", ")), nil

	case core.AssertRelationships:
		parent, ok := resolve(a.ToModel)
		if !ok {
			return "", fmt.Errorf("no relation for model %q", a.ToModel)
		}
		return fmt.Sprintf(
			"SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL AND NOT EXISTS (SELECT 1 FROM %s AS p WHERE p.%s = %s)",
			from, col, d.QualifiedName(parent), d.QuoteIdent(a.ToColumn), col), nil

	default:
		return "", fmt.Errorf("unknown test kind %q", a.Kind)
	}
}
