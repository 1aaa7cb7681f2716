package selector

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/strata/internal/dag"
	"github.com/leapstack-labs/strata/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type def struct {
	name string
	refs []string
	tags []string
}

func buildGraph(t *testing.T, defs ...def) *dag.Graph {
	t.Helper()
	g := dag.NewGraph()
	for _, d := range defs {
		g.AddNode(d.name, &core.Model{Name: d.name, Refs: d.refs, Tags: d.tags})
	}
	for _, d := range defs {
		for _, ref := range d.refs {
			require.NoError(t, g.AddEdge(ref, d.name))
		}
	}
	return g
}

func projectGraph(t *testing.T) *dag.Graph {
	return buildGraph(t,
		def{name: "stg_customers"},
		def{name: "stg_orders"},
		def{name: "customer_orders", refs: []string{"stg_customers", "stg_orders"}},
		def{name: "revenue", refs: []string{"customer_orders"}, tags: []string{"finance"}},
	)
}

func TestSelect(t *testing.T) {
	g := projectGraph(t)

	tests := []struct {
		expr string
		want []string
	}{
		{"", []string{"stg_customers", "stg_orders", "customer_orders", "revenue"}},
		{"*", []string{"stg_customers", "stg_orders", "customer_orders", "revenue"}},
		{"customer_orders", []string{"customer_orders"}},
		{"stg_customers+", []string{"stg_customers", "customer_orders", "revenue"}},
		{"+customer_orders", []string{"stg_customers", "stg_orders", "customer_orders"}},
		{"+customer_orders+", []string{"stg_customers", "stg_orders", "customer_orders", "revenue"}},
		{"revenue, stg_orders", []string{"stg_orders", "revenue"}},
		{"revenue stg_orders", []string{"stg_orders", "revenue"}},
		{"stg_orders,stg_orders+", []string{"stg_orders", "customer_orders", "revenue"}},
		{"tag:finance", []string{"revenue"}},
		{"+tag:finance", []string{"stg_customers", "stg_orders", "customer_orders", "revenue"}},
		{"stg_orders,*", []string{"stg_customers", "stg_orders", "customer_orders", "revenue"}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Select(g, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelect_DescendantsOnlyExample(t *testing.T) {
	g := buildGraph(t,
		def{name: "stg_customers"},
		def{name: "stg_orders"},
		def{name: "customer_orders", refs: []string{"stg_customers", "stg_orders"}},
	)

	all, err := Select(g, "*")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "customer_orders", all[2])

	got, err := Select(g, "stg_customers+")
	require.NoError(t, err)
	assert.Equal(t, []string{"stg_customers", "customer_orders"}, got)
}

func TestSelect_KeepsOrderThroughUnselectedModels(t *testing.T) {
	// registration order is the reverse of dependency order
	g := buildGraph(t,
		def{name: "z_final", refs: []string{"m_mid"}},
		def{name: "m_mid", refs: []string{"a_base"}},
		def{name: "a_base"},
	)

	got, err := Select(g, "z_final,a_base")
	require.NoError(t, err)
	assert.Equal(t, []string{"a_base", "z_final"}, got)
}

func TestParse_Terms(t *testing.T) {
	sel, err := Parse("+a, b+ +tag:nightly+")
	require.NoError(t, err)
	require.Len(t, sel.Terms, 3)

	assert.Equal(t, Term{Value: "a", Ancestors: true}, sel.Terms[0])
	assert.Equal(t, Term{Value: "b", Descendants: true}, sel.Terms[1])
	assert.Equal(t, Term{Value: "nightly", Tag: true, Ancestors: true, Descendants: true}, sel.Terms[2])
	assert.Equal(t, "+a,b+,+tag:nightly+", sel.String())
	assert.False(t, sel.IsAll())
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse("+*, +, ++, bad(name), tag:, ok")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidSelection))

	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, cfgErr.Problems, 5)
}

func TestResolve_UnknownNames(t *testing.T) {
	g := projectGraph(t)

	_, err := Select(g, "ghost,+phantom,tag:nobody,revenue")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidSelection))

	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Len(t, cfgErr.Problems, 3)
	assert.Contains(t, cfgErr.Problems[0].Detail, "ghost")
	assert.Contains(t, cfgErr.Problems[1].Detail, "phantom")
	assert.Contains(t, cfgErr.Problems[2].Detail, "nobody")
}

func TestResolve_Cycle(t *testing.T) {
	g := dag.NewGraph()
	g.AddNode("a", &core.Model{Name: "a"})
	g.AddNode("b", &core.Model{Name: "b"})
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "a"))

	_, err := Select(g, "a")
	assert.ErrorIs(t, err, core.ErrCycle)
}

func TestResolve_CycleOutsideSelection(t *testing.T) {
	g := dag.NewGraph()
	g.AddNode("a", &core.Model{Name: "a"})
	g.AddNode("b", &core.Model{Name: "b"})
	g.AddNode("stg_orders", &core.Model{Name: "stg_orders"})
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "a"))

	// the whole project is validated, not just the selected part
	_, err := Select(g, "stg_orders")
	assert.ErrorIs(t, err, core.ErrCycle)
}
