package core

import (
	"context"
	"database/sql"
)

// Adapter defines the interface that all database adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the database.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close closes the database connection.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// GetTableMetadata retrieves metadata for a table.
	GetTableMetadata(ctx context.Context, table string) (*TableMetadata, error)

	// RelationKind reports whether a relation exists and if it is a view or table.
	RelationKind(ctx context.Context, rel RelationName) (RelationKind, error)

	// LoadCSV loads data from a CSV file into a table, replacing it.
	LoadCSV(ctx context.Context, rel RelationName, filePath string) error

	// Dialect returns the static dialect configuration.
	Dialect() *Dialect
}

// RelationReplacer is implemented by adapters that replace relations
// themselves. Without it the engine issues CREATE OR REPLACE, or a drop and
// create on dialects lacking CREATE OR REPLACE TABLE.
type RelationReplacer interface {
	// ReplaceRelation swaps rel, currently of kind existing (RelationNone when
	// absent), for a relation of kind want holding the result of query.
	ReplaceRelation(ctx context.Context, rel RelationName, existing, want RelationKind, query string) error
}

// AdapterConfig holds configuration for connecting to a database.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	// Params holds adapter-specific settings decoded by each adapter
	Params map[string]any
}

// Column represents a column in a database table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// TableMetadata holds metadata about a database table.
type TableMetadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}
