package postgres

// replace.go - relation swaps that keep the views reading the old relation

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/leapstack-labs/strata/pkg/adapter"
	"github.com/leapstack-labs/strata/pkg/core"
)

// dependentViewsSQL lists the views reading $1 directly or through other
// views, shallowest first so each one can be recreated after those it reads.
const dependentViewsSQL = `WITH RECURSIVE deps(oid, depth) AS (
	SELECT DISTINCT r.ev_class, 1
	FROM pg_depend d
	JOIN pg_rewrite r ON r.oid = d.objid
	WHERE d.classid = 'pg_rewrite'::regclass
	  AND d.refobjid = to_regclass($1)
	  AND r.ev_class <> d.refobjid
	UNION
	SELECT r.ev_class, deps.depth + 1
	FROM deps
	JOIN pg_depend d ON d.refobjid = deps.oid AND d.classid = 'pg_rewrite'::regclass
	JOIN pg_rewrite r ON r.oid = d.objid
	WHERE r.ev_class <> deps.oid
)
SELECT n.nspname, c.relname, pg_get_viewdef(c.oid)
FROM deps
JOIN pg_class c ON c.oid = deps.oid
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind = 'v'
GROUP BY c.oid, n.nspname, c.relname
ORDER BY max(deps.depth), n.nspname, c.relname`

// savedView is a dependent view captured before its source is dropped.
type savedView struct {
	rel        core.RelationName
	definition string
}

func (v savedView) createSQL() string {
	def := strings.TrimRight(strings.TrimSpace(v.definition), "; \t\n")
	return fmt.Sprintf("CREATE VIEW %s AS %s", dialect.QualifiedName(v.rel), def)
}

// txConn is the part of an open transaction a relation swap needs. Both the
// database/sql and the raw pgx transaction used for COPY satisfy it.
type txConn interface {
	exec(ctx context.Context, stmt string) error
	dependentViews(ctx context.Context, rel core.RelationName) ([]savedView, error)
}

type sqlTx struct{ *sql.Tx }

func (t sqlTx) exec(ctx context.Context, stmt string) error {
	_, err := t.ExecContext(ctx, stmt)
	return err
}

func (t sqlTx) dependentViews(ctx context.Context, rel core.RelationName) ([]savedView, error) {
	rows, err := t.QueryContext(ctx, dependentViewsSQL, dialect.QualifiedName(rel))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanViews(rows)
}

type pgxTx struct{ pgx.Tx }

func (t pgxTx) exec(ctx context.Context, stmt string) error {
	_, err := t.Exec(ctx, stmt)
	return err
}

func (t pgxTx) dependentViews(ctx context.Context, rel core.RelationName) ([]savedView, error) {
	rows, err := t.Query(ctx, dependentViewsSQL, dialect.QualifiedName(rel))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanViews(rows)
}

func scanViews(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]savedView, error) {
	var views []savedView
	for rows.Next() {
		var v savedView
		if err := rows.Scan(&v.rel.Schema, &v.rel.Name, &v.definition); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func dropCascade(kind core.RelationKind, rel core.RelationName) string {
	if kind == core.RelationView {
		return "DROP VIEW IF EXISTS " + dialect.QualifiedName(rel) + " CASCADE"
	}
	return "DROP TABLE IF EXISTS " + dialect.QualifiedName(rel) + " CASCADE"
}

func createSQL(kind core.RelationKind, rel core.RelationName, query string) string {
	if kind == core.RelationView {
		return fmt.Sprintf("CREATE VIEW %s AS %s", dialect.QualifiedName(rel), query)
	}
	return fmt.Sprintf("CREATE TABLE %s AS %s", dialect.QualifiedName(rel), query)
}

// swapRelation drops rel with the views that read it, calls build to create
// the replacement, then recreates the dropped views from their saved
// definitions. Each view is restored under its own savepoint; one that no
// longer fits the new relation stays dropped and is returned.
func swapRelation(ctx context.Context, tx txConn, rel core.RelationName, existing core.RelationKind, build func() error) ([]core.RelationName, error) {
	var views []savedView
	if existing != core.RelationNone {
		var err error
		if views, err = tx.dependentViews(ctx, rel); err != nil {
			return nil, fmt.Errorf("failed to list views reading %s: %w", rel, err)
		}
		if err := tx.exec(ctx, dropCascade(existing, rel)); err != nil {
			return nil, fmt.Errorf("failed to drop %s %s: %w", existing, rel, err)
		}
	}

	if err := build(); err != nil {
		return nil, err
	}

	var lost []core.RelationName
	for i, v := range views {
		savepoint := fmt.Sprintf("strata_restore_%d", i)
		if err := tx.exec(ctx, "SAVEPOINT "+savepoint); err != nil {
			return nil, err
		}
		if err := tx.exec(ctx, v.createSQL()); err != nil {
			if err := tx.exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); err != nil {
				return nil, err
			}
			lost = append(lost, v.rel)
			continue
		}
		if err := tx.exec(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
			return nil, err
		}
	}
	return lost, nil
}

// ReplaceRelation replaces rel, currently of kind existing, with a view or
// table holding the result of query. The swap runs in one transaction and
// views reading the old relation are recreated on top of the new one.
func (a *Adapter) ReplaceRelation(ctx context.Context, rel core.RelationName, existing, want core.RelationKind, query string) error {
	if a.DB == nil {
		return adapter.ErrNotConnected
	}

	tx, err := a.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stx := sqlTx{tx}
	lost, err := swapRelation(ctx, stx, rel, existing, func() error {
		return stx.exec(ctx, createSQL(want, rel, query))
	})
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", rel, err)
	}
	a.warnLost(rel, lost)
	return nil
}

func (a *Adapter) warnLost(rel core.RelationName, lost []core.RelationName) {
	for _, v := range lost {
		a.Logger.Warn("dependent view no longer matches its source and was dropped",
			slog.String("relation", rel.String()),
			slog.String("view", v.String()))
	}
}

var _ core.RelationReplacer = (*Adapter)(nil)
