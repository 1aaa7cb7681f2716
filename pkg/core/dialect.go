package core

import (
	"strconv"
	"strings"
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
)

// Dialect holds the static SQL conventions of a target.
type Dialect struct {
	// Name is the dialect identifier (e.g., "duckdb", "postgres")
	Name string
	// DefaultSchema is the default schema name ("main" for DuckDB, "public" for Postgres)
	DefaultSchema string
	// Placeholder defines how query parameters are formatted
	Placeholder PlaceholderStyle
	// ReplaceTable is true when CREATE OR REPLACE TABLE is supported
	ReplaceTable bool
}

// QuoteIdent quotes an identifier with double quotes.
func (d *Dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifiedName renders a quoted schema.name.
func (d *Dialect) QualifiedName(rel RelationName) string {
	if rel.Schema == "" {
		return d.QuoteIdent(rel.Name)
	}
	return d.QuoteIdent(rel.Schema) + "." + d.QuoteIdent(rel.Name)
}

// QuoteString renders a SQL string literal.
func (d *Dialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FormatPlaceholder returns the placeholder for the 1-based parameter index.
func (d *Dialect) FormatPlaceholder(index int) string {
	if d.Placeholder == PlaceholderDollar {
		return "$" + strconv.Itoa(index)
	}
	return "?"
}
