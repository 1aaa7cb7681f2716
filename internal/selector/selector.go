// Package selector parses selection expressions and resolves them against a
// dependency graph.
//
// Grammar (terms separated by commas or whitespace, results unioned):
//
//	*            every model
//	name         a single model
//	+name        the model and all its transitive ancestors
//	name+        the model and all its transitive descendants
//	+name+       both
//	tag:t        every model tagged t (accepts the same + markers)
package selector

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/leapstack-labs/strata/internal/dag"
	"github.com/leapstack-labs/strata/pkg/core"
)

// All is the wildcard expression.
const All = "*"

const tagPrefix = "tag:"

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.\-]*$`)

// Term is one element of a selection.
type Term struct {
	// Value is the model name or, for tag terms, the tag
	Value       string
	Wildcard    bool
	Tag         bool
	Ancestors   bool
	Descendants bool
}

func (t Term) String() string {
	if t.Wildcard {
		return All
	}
	var b strings.Builder
	if t.Ancestors {
		b.WriteByte('+')
	}
	if t.Tag {
		b.WriteString(tagPrefix)
	}
	b.WriteString(t.Value)
	if t.Descendants {
		b.WriteByte('+')
	}
	return b.String()
}

// Selection is a parsed selection expression.
type Selection struct {
	Terms []Term
}

// String renders the selection in canonical form.
func (s *Selection) String() string {
	parts := make([]string, len(s.Terms))
	for i, t := range s.Terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

// IsAll reports whether the selection includes every model.
func (s *Selection) IsAll() bool {
	for _, t := range s.Terms {
		if t.Wildcard {
			return true
		}
	}
	return false
}

// Parse parses a selection expression. An empty expression selects every
// model. All malformed terms are reported together as ErrInvalidSelection.
func Parse(expr string) (*Selection, error) {
	fields := strings.FieldsFunc(expr, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return &Selection{Terms: []Term{{Wildcard: true}}}, nil
	}

	sel := &Selection{}
	var problems []core.Problem
	for _, field := range fields {
		term, err := parseTerm(field)
		if err != nil {
			problems = append(problems, core.Problem{Detail: err.Error()})
			continue
		}
		sel.Terms = append(sel.Terms, term)
	}
	if len(problems) > 0 {
		return nil, &core.ConfigurationError{Kind: core.ErrInvalidSelection, Problems: problems}
	}
	return sel, nil
}

func parseTerm(field string) (Term, error) {
	if field == All {
		return Term{Wildcard: true}, nil
	}

	var t Term
	rest := field
	if strings.HasPrefix(rest, "+") {
		t.Ancestors = true
		rest = rest[1:]
	}
	if strings.HasSuffix(rest, "+") {
		t.Descendants = true
		rest = rest[:len(rest)-1]
	}
	if strings.HasPrefix(rest, tagPrefix) {
		t.Tag = true
		rest = strings.TrimPrefix(rest, tagPrefix)
	}

	switch {
	case rest == All:
		return t, fmt.Errorf("%q: the wildcard takes no + markers", field)
	case rest == "":
		return t, fmt.Errorf("%q: missing model name", field)
	case !namePattern.MatchString(rest):
		return t, fmt.Errorf("%q: %q is not a valid model name", field, rest)
	}
	t.Value = rest
	return t, nil
}

// Resolve returns the selected model names in execution order: every model
// after all models it references, ties broken by registration order.
// Unknown model names and tags matching no model are ErrInvalidSelection.
func Resolve(g *dag.Graph, sel *Selection) ([]string, error) {
	sorted, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	selected := make(map[string]bool)
	var problems []core.Problem
	for _, t := range sel.Terms {
		if t.Wildcard {
			for _, n := range sorted {
				selected[n.ID] = true
			}
			continue
		}

		roots, err := termRoots(g, t)
		if err != nil {
			problems = append(problems, core.Problem{Detail: err.Error()})
			continue
		}
		for _, id := range roots {
			selected[id] = true
			if t.Ancestors {
				for _, up := range g.Ancestors(id) {
					selected[up] = true
				}
			}
			if t.Descendants {
				for _, down := range g.Descendants(id) {
					selected[down] = true
				}
			}
		}
	}
	if len(problems) > 0 {
		return nil, &core.ConfigurationError{Kind: core.ErrInvalidSelection, Problems: problems}
	}

	result := make([]string, 0, len(selected))
	for _, n := range sorted {
		if selected[n.ID] {
			result = append(result, n.ID)
		}
	}
	return result, nil
}

func termRoots(g *dag.Graph, t Term) ([]string, error) {
	if !t.Tag {
		if _, ok := g.Node(t.Value); !ok {
			return nil, fmt.Errorf("%q: no model named %q", t, t.Value)
		}
		return []string{t.Value}, nil
	}

	var roots []string
	for _, n := range g.Nodes() {
		if m, ok := n.Data.(*core.Model); ok && m.HasTag(t.Value) {
			roots = append(roots, n.ID)
		}
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("%q: no model is tagged %q", t, t.Value)
	}
	return roots, nil
}

// Select parses expr and resolves it against g.
func Select(g *dag.Graph, expr string) ([]string, error) {
	sel, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return Resolve(g, sel)
}
