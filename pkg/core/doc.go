// Package core defines the shared language of the strata system.
//
// This package contains:
//   - Domain entities (Model, Seed, Assertion, Run, etc.)
//   - Service interfaces (Adapter)
//   - Configuration types (TargetConfig)
//   - The error kinds surfaced to callers
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
