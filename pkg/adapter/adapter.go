// Package adapter provides the store contract and shared plumbing for
// strata's database adapters.
//
// Concrete adapters live in pkg/adapters/ subdirectories and register
// themselves with this package from init().
package adapter

import "github.com/leapstack-labs/strata/pkg/core"

// Type aliases so adapters can spell the contract without importing core.
type (
	// Adapter is an alias for core.Adapter.
	Adapter = core.Adapter

	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Column is an alias for core.Column.
	Column = core.Column

	// Metadata is an alias for core.TableMetadata.
	Metadata = core.TableMetadata

	// Rows is an alias for core.Rows.
	Rows = core.Rows
)
