// Package duckdb provides the embedded DuckDB store adapter for strata.
//
// This file registers the DuckDB adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/strata/pkg/adapters/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/strata/pkg/adapter"
)

func init() {
	adapter.Register(adapter.Driver{
		Name:          "duckdb",
		New:           func(logger *slog.Logger) adapter.Adapter { return New(logger) },
		DefaultSchema: "main",
	})
}
