package engine

// materializations.go - create-or-replace strategies for views and tables

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/strata/pkg/core"
)

// ensureSchema creates a schema once per engine.
func (e *Engine) ensureSchema(ctx context.Context, schema string) error {
	if schema == "" {
		return nil
	}

	e.schemasMu.Lock()
	defer e.schemasMu.Unlock()
	if e.schemas[schema] {
		return nil
	}

	d := e.db.Dialect()
	if err := e.db.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", d.QuoteIdent(schema))); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", schema, err)
	}
	e.schemas[schema] = true
	return nil
}

// materialize creates or replaces the relation of m. It returns the table
// row count, or -1 for views.
func (e *Engine) materialize(ctx context.Context, m *core.Model) (int64, error) {
	d := e.db.Dialect()
	rel := m.Relation(e.schema)
	qualified := d.QualifiedName(rel)

	body, err := e.RenderModel(m, d)
	if err != nil {
		return -1, err
	}
	body = strings.TrimRight(strings.TrimSpace(body), "; \t\n")

	if err := e.ensureSchema(ctx, rel.Schema); err != nil {
		return -1, err
	}

	want := core.RelationView
	if m.Materialized == core.MaterializeTable {
		want = core.RelationTable
	}
	existing, err := e.db.RelationKind(ctx, rel)
	if err != nil {
		return -1, fmt.Errorf("failed to inspect %s: %w", rel, err)
	}

	if r, ok := e.db.(core.RelationReplacer); ok {
		if err := r.ReplaceRelation(ctx, rel, existing, want, body); err != nil {
			return -1, err
		}
	} else {
		if existing != core.RelationNone && existing != want {
			// a relation of the other kind blocks CREATE OR REPLACE
			if err := e.db.Exec(ctx, dropStatement(existing, qualified)); err != nil {
				return -1, fmt.Errorf("failed to drop existing %s %s: %w", existing, rel, err)
			}
		}
		if err := e.db.Exec(ctx, createStatement(d, want, qualified, body)); err != nil {
			return -1, err
		}
	}

	if want == core.RelationView {
		return -1, nil
	}
	return e.countRows(ctx, qualified)
}

func dropStatement(kind core.RelationKind, qualified string) string {
	if kind == core.RelationView {
		return "DROP VIEW IF EXISTS " + qualified
	}
	return "DROP TABLE IF EXISTS " + qualified
}

// createStatement renders the create-or-replace statement for adapters that
// do not implement core.RelationReplacer. Dialects without CREATE OR REPLACE
// TABLE get a drop and create sent as one multi-statement batch.
func createStatement(d *core.Dialect, kind core.RelationKind, qualified, body string) string {
	if kind == core.RelationView {
		return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s", qualified, body)
	}
	if d.ReplaceTable {
		return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", qualified, body)
	}
	return fmt.Sprintf("DROP TABLE IF EXISTS %s; CREATE TABLE %s AS %s", qualified, qualified, body)
}

func (e *Engine) countRows(ctx context.Context, qualified string) (int64, error) {
	rows, err := e.db.Query(ctx, "SELECT COUNT(*) FROM "+qualified)
	if err != nil {
		return -1, fmt.Errorf("failed to count rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return -1, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	return count, rows.Err()
}
