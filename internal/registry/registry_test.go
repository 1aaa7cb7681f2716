package registry

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/strata/internal/config"
	"github.com/leapstack-labs/strata/internal/loader"
	"github.com/leapstack-labs/strata/internal/testutil"
	"github.com/leapstack-labs/strata/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func model(name string, group []string, refs ...string) *core.Model {
	return &core.Model{Name: name, Group: group, FilePath: name + ".sql", Refs: refs}
}

func newRegistry(t *testing.T, groups *config.GroupTree, models ...*core.Model) *ModelRegistry {
	t.Helper()
	r := New(groups, testutil.NewTestLogger(t))
	for _, m := range models {
		require.NoError(t, r.Add(m))
	}
	return r
}

func TestModelRegistry_Resolve(t *testing.T) {
	r := newRegistry(t, nil,
		model("stg_orders", nil, "raw_orders"),
		model("stg_customers", nil),
		model("customer_orders", nil, "stg_customers", "stg_orders"),
	)
	require.NoError(t, r.AddSeed(&core.Seed{Name: "raw_orders", FilePath: "seeds/raw_orders.csv"}))
	require.NoError(t, r.Resolve())

	co, ok := r.GetModel("customer_orders")
	require.True(t, ok)
	assert.Equal(t, []string{"stg_customers", "stg_orders"}, co.DependsOn)
	assert.Equal(t, 2, co.Order)

	stg, _ := r.GetModel("stg_orders")
	assert.Empty(t, stg.DependsOn, "seed refs add no edge")

	g := r.Graph()
	require.NotNil(t, g)
	assert.Equal(t, []string{"stg_orders", "stg_customers", "customer_orders"}, g.NodeIDs())
	assert.Equal(t, 2, g.EdgeCount())
}

func TestModelRegistry_Resolve_ReportsAllUnresolved(t *testing.T) {
	r := newRegistry(t, nil,
		model("a", nil, "missing_one"),
		model("b", nil, "a", "missing_two"),
	)

	err := r.Resolve()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnresolvedRef))

	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Len(t, cfgErr.Problems, 2)
	assert.Equal(t, "a", cfgErr.Problems[0].Model)
	assert.Contains(t, cfgErr.Problems[0].Detail, "missing_one")
	assert.Equal(t, "b", cfgErr.Problems[1].Model)
	assert.Contains(t, cfgErr.Problems[1].Detail, "missing_two")

	assert.Nil(t, r.Graph())
	assert.False(t, r.Resolved())
}

func TestModelRegistry_Resolve_Cycle(t *testing.T) {
	r := newRegistry(t, nil,
		model("a", nil, "b"),
		model("b", nil, "a"),
	)

	err := r.Resolve()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCycle))

	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, []string{"a", "b"}, cfgErr.Problems[0].Model)
}

func TestModelRegistry_Resolve_SelfReference(t *testing.T) {
	r := newRegistry(t, nil, model("a", nil, "a"))
	assert.ErrorIs(t, r.Resolve(), core.ErrCycle)
}

func TestModelRegistry_Add_Duplicate(t *testing.T) {
	r := newRegistry(t, nil, model("a", nil))

	err := r.Add(model("a", []string{"other"}))
	assert.ErrorIs(t, err, core.ErrDuplicateModel)

	err = r.AddSeed(&core.Seed{Name: "a", FilePath: "seeds/a.csv"})
	assert.ErrorIs(t, err, core.ErrDuplicateModel)
}

func TestModelRegistry_MaterializationLayering(t *testing.T) {
	groups, err := config.ParseGroupTree(map[string]any{
		"+materialized": "table",
		"+tags":         []any{"all"},
		"staging": map[string]any{
			"+materialized": "view",
			"+schema":       "stg",
			"+tags":         []any{"staging"},
		},
	})
	require.NoError(t, err)

	explicit := model("explicit", []string{"staging"})
	explicit.Materialized = core.MaterializeTable
	explicit.Tags = []string{"pii"}

	r := newRegistry(t, groups,
		explicit,
		model("grouped", []string{"staging"}),
		model("project", []string{"core"}),
	)
	require.NoError(t, r.Resolve())

	tests := []struct {
		name         string
		materialized core.Materialization
		schema       string
		tags         []string
	}{
		{"explicit", core.MaterializeTable, "stg", []string{"pii", "all", "staging"}},
		{"grouped", core.MaterializeView, "stg", []string{"all", "staging"}},
		{"project", core.MaterializeTable, "", []string{"all"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := r.GetModel(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.materialized, m.Materialized)
			assert.Equal(t, tt.schema, m.Schema)
			assert.Equal(t, tt.tags, m.Tags)
		})
	}
}

func TestModelRegistry_DefaultMaterialization(t *testing.T) {
	r := newRegistry(t, nil, model("a", []string{"x"}))
	require.NoError(t, r.Resolve())

	m, _ := r.GetModel("a")
	assert.Equal(t, core.MaterializeView, m.Materialized)
}

func TestModelRegistry_ResolveAssertions(t *testing.T) {
	r := newRegistry(t, nil, model("stg_orders", nil), model("stg_customers", nil))
	require.NoError(t, r.AddSeed(&core.Seed{Name: "raw_regions"}))
	require.NoError(t, r.Resolve())

	noQuote := false
	assertions, err := r.ResolveAssertions([]loader.AssertionDecl{
		{Model: "stg_orders", Column: "order_id", Kind: "unique"},
		{Model: "stg_orders", Column: "order_id", Kind: "not_null"},
		{Model: "stg_orders", Column: "status", Kind: "accepted_values", Values: []string{"placed"}, Severity: "warn"},
		{Model: "stg_orders", Column: "status", Kind: "accepted_values", Values: []string{"1", "2"}, Quote: &noQuote},
		{Model: "stg_orders", Column: "customer_id", Kind: "relationships", To: "ref('stg_customers')", Field: "customer_id"},
		{Model: "stg_orders", Column: "region", Kind: "relationships", To: "raw_regions", Field: "id"},
	})
	require.NoError(t, err)
	require.Len(t, assertions, 6)

	assert.Equal(t, "unique_stg_orders_order_id", assertions[0].Name)
	assert.Equal(t, core.SeverityError, assertions[0].Severity)

	assert.Equal(t, "accepted_values_stg_orders_status", assertions[2].Name)
	assert.Equal(t, core.SeverityWarn, assertions[2].Severity)
	assert.True(t, assertions[2].Quote)

	assert.Equal(t, "accepted_values_stg_orders_status_2", assertions[3].Name)
	assert.False(t, assertions[3].Quote)

	assert.Equal(t, "stg_customers", assertions[4].ToModel)
	assert.Equal(t, "customer_id", assertions[4].ToColumn)
	assert.Equal(t, "raw_regions", assertions[5].ToModel)
}

func TestModelRegistry_ResolveAssertions_CollectsProblems(t *testing.T) {
	r := newRegistry(t, nil, model("stg_orders", nil))
	require.NoError(t, r.Resolve())

	_, err := r.ResolveAssertions([]loader.AssertionDecl{
		{Model: "stg_orders", Column: "id", Kind: "positive"},
		{Model: "ghost", Column: "id", Kind: "unique"},
		{Model: "stg_orders", Column: "status", Kind: "accepted_values"},
		{Model: "stg_orders", Column: "customer_id", Kind: "relationships", To: "ref('customers')", Field: "id"},
		{Model: "stg_orders", Column: "customer_id", Kind: "relationships", To: "stg_orders"},
		{Model: "stg_orders", Column: "id", Kind: "unique", Severity: "fatal"},
		{Model: "stg_orders", Kind: "not_null"},
		{Model: "stg_orders", Column: "id", Kind: "not_null"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidAssertion))

	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, cfgErr.Problems, 7)
	assert.Equal(t, "ghost", cfgErr.Problems[1].Model)
}
