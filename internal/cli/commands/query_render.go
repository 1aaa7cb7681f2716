package commands

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/leapstack-labs/strata/internal/cli/output"
	"github.com/leapstack-labs/strata/internal/engine"
	"github.com/leapstack-labs/strata/pkg/core"
)

// resultSet is a fully read query result.
type resultSet struct {
	columns []string
	rows    [][]any
}

func collectRows(rows *sql.Rows) (*resultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &resultSet{columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.rows = append(rs.rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func (rs *resultSet) render(w io.Writer, format string) error {
	switch format {
	case FormatJSON:
		return rs.renderJSON(w)
	case FormatCSV:
		return rs.renderCSV(w)
	case FormatMarkdown:
		if len(rs.rows) == 0 {
			_, _ = fmt.Fprintln(w, "(0 rows)")
			return nil
		}
		output.RenderTable(w, rs.columns, rs.cells(), true)
		return nil
	default:
		if len(rs.rows) == 0 {
			_, _ = fmt.Fprintln(w, "(0 rows)")
			return nil
		}
		output.RenderTable(w, rs.columns, rs.cells(), false)
		_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rs.rows))
		return nil
	}
}

func (rs *resultSet) cells() [][]string {
	out := make([][]string, len(rs.rows))
	for i, row := range rs.rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatValue(v)
		}
		out[i] = cells
	}
	return out
}

func (rs *resultSet) renderJSON(w io.Writer) error {
	records := make([]map[string]any, 0, len(rs.rows))
	for _, row := range rs.rows {
		rec := make(map[string]any, len(rs.columns))
		for i, col := range rs.columns {
			rec[col] = jsonValue(row[i])
		}
		records = append(records, rec)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func (rs *resultSet) renderCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rs.columns); err != nil {
		return err
	}
	for _, row := range rs.cells() {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// jsonValue keeps scalars as they are and flattens driver types to text.
func jsonValue(v any) any {
	switch val := v.(type) {
	case nil, bool, string, int, int8, int16, int32, int64, uint8, uint16, uint32, uint64, float32, float64, time.Time:
		return val
	default:
		return formatValue(val)
	}
}

func relationsQuery(viewsOnly bool) string {
	q := `SELECT table_schema AS schema_name,
       table_name AS name,
       CASE WHEN table_type = 'VIEW' THEN 'view' ELSE 'table' END AS kind
FROM information_schema.tables
WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
  AND table_schema NOT LIKE 'pg_%'`
	if viewsOnly {
		q += "\n  AND table_type = 'VIEW'"
	}
	return q + "\nORDER BY schema_name, name"
}

// splitRelation splits "schema.name"; a bare name uses the default schema.
func splitRelation(name, defaultSchema string) (string, string) {
	if schema, rel, ok := strings.Cut(name, "."); ok {
		return schema, rel
	}
	return defaultSchema, name
}

// metadataResult lays column metadata out like an information_schema query.
func metadataResult(meta *core.TableMetadata) *resultSet {
	rs := &resultSet{columns: []string{"column_name", "data_type", "is_nullable"}}
	for _, c := range meta.Columns {
		nullable := "NO"
		if c.Nullable {
			nullable = "YES"
		}
		rs.rows = append(rs.rows, []any{c.Name, c.Type, nullable})
	}
	return rs
}

func showSchema(ctx context.Context, w io.Writer, eng *engine.Engine, relation, format string) error {
	schema, name := splitRelation(relation, eng.DefaultSchema())

	meta, err := eng.Describe(ctx, core.RelationName{Schema: schema, Name: name})
	if err != nil {
		return err
	}

	if format == FormatTable {
		_, _ = fmt.Fprintf(w, "Relation: %s.%s (%d rows)\n", meta.Schema, meta.Name, meta.RowCount)
	}
	return metadataResult(meta).render(w, format)
}
