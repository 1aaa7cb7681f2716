package core

import (
	"fmt"
	"strings"
)

// Materialization is the storage strategy for a model's output.
type Materialization string

// Materialization kinds.
const (
	MaterializeView  Materialization = "view"
	MaterializeTable Materialization = "table"
)

// DefaultMaterialization applies when neither the model, its group, nor the
// project declare one.
const DefaultMaterialization = MaterializeView

// ParseMaterialization validates a materialization name.
// The empty string is returned as-is so callers can layer defaults.
func ParseMaterialization(s string) (Materialization, error) {
	switch m := Materialization(strings.ToLower(strings.TrimSpace(s))); m {
	case "", MaterializeView, MaterializeTable:
		return m, nil
	default:
		return "", fmt.Errorf("invalid materialized value %q, must be one of: view, table", s)
	}
}

// Model represents a SQL model (transformation unit).
// A Model is immutable once the registry has resolved it.
type Model struct {
	// Name is the unique model name (file stem or frontmatter name)
	Name string
	// Path is the model path relative to the models directory, dot separated
	// (e.g., "staging.stg_customers")
	Path string
	// FilePath is the absolute path to the SQL file
	FilePath string
	// Group is the directory components between the models dir and the file
	Group []string
	// Materialized is the resolved materialization
	Materialized Materialization
	// Schema is the database schema the relation lives in (empty = target default)
	Schema string
	// Description is a human-readable description of the model
	Description string
	// Tags are metadata labels used by tag: selections
	Tags []string
	// Meta contains custom extension fields
	Meta map[string]any
	// Refs are the referenced names in first-seen order (models and seeds)
	Refs []string
	// DependsOn is the subset of Refs that name models
	DependsOn []string
	// SQL is the transformation body (excluding frontmatter), refs unrendered
	SQL string
	// RawContent is the full file content including frontmatter
	RawContent string
	// Order is the registration index, used for deterministic tie-breaking
	Order int
}

// Relation returns the schema-qualified relation name for the model.
func (m *Model) Relation(defaultSchema string) RelationName {
	schema := m.Schema
	if schema == "" {
		schema = defaultSchema
	}
	return RelationName{Schema: schema, Name: m.Name}
}

// HasTag reports whether the model carries the tag.
func (m *Model) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Seed is a static CSV dataset loaded verbatim into the store.
type Seed struct {
	Name     string
	FilePath string
}

// RelationName identifies a relation inside the store.
type RelationName struct {
	Schema string
	Name   string
}

// String returns the unquoted dotted form.
func (r RelationName) String() string {
	if r.Schema == "" {
		return r.Name
	}
	return r.Schema + "." + r.Name
}

// RelationKind is the kind of an existing relation in the store.
type RelationKind string

// Relation kinds reported by the store.
const (
	RelationNone  RelationKind = ""
	RelationView  RelationKind = "view"
	RelationTable RelationKind = "table"
)
