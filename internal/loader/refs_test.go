package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRefs(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "no refs",
			sql:  "SELECT 1",
			want: nil,
		},
		{
			name: "single and double quotes",
			sql:  `SELECT * FROM {{ ref('stg_orders') }} o JOIN {{ref("stg_customers")}} c USING (customer_id)`,
			want: []string{"stg_orders", "stg_customers"},
		},
		{
			name: "first-seen order without duplicates",
			sql:  "SELECT * FROM {{ ref('b') }} UNION ALL SELECT * FROM {{ ref('a') }} UNION ALL SELECT * FROM {{ ref( 'b' ) }}",
			want: []string{"b", "a"},
		},
		{
			name: "bare ref call without braces is not a marker",
			sql:  "SELECT ref('x') AS y",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractRefs(tt.sql))
		})
	}
}

func TestParseRefExpr(t *testing.T) {
	assert.Equal(t, "stg_customers", ParseRefExpr("ref('stg_customers')"))
	assert.Equal(t, "stg_customers", ParseRefExpr(`ref("stg_customers")`))
	assert.Equal(t, "stg_customers", ParseRefExpr(" stg_customers "))
}

func TestRenderRefs(t *testing.T) {
	relations := map[string]string{
		"stg_orders":    `"main"."stg_orders"`,
		"stg_customers": `"main"."stg_customers"`,
	}
	resolve := func(name string) (string, bool) {
		rel, ok := relations[name]
		return rel, ok
	}

	out, err := RenderRefs("SELECT * FROM {{ ref('stg_orders') }} JOIN {{ ref(\"stg_customers\") }} USING (id)", resolve)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "main"."stg_orders" JOIN "main"."stg_customers" USING (id)`, out)

	_, err = RenderRefs("SELECT * FROM {{ ref('nope') }}, {{ ref('gone') }}", resolve)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope, gone")
}
