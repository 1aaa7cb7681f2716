package postgres

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/strata/pkg/adapter"
	"github.com/leapstack-labs/strata/pkg/core"
)

var dialect = &core.Dialect{
	Name:          "postgres",
	DefaultSchema: "public",
	Placeholder:   core.PlaceholderDollar,
	ReplaceTable:  false,
}

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Dialect returns the PostgreSQL dialect.
func (a *Adapter) Dialect() *core.Dialect {
	return dialect
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN renders cfg as a keyword/value connection string. Target
// options are passed through as extra keywords in sorted order.
func buildPostgresDSN(cfg adapter.Config) string {
	host := cmp.Or(cfg.Host, "localhost")
	port := cmp.Or(cfg.Port, 5432)

	parts := []string{
		"host=" + dsnValue(host),
		"port=" + strconv.Itoa(port),
		"dbname=" + dsnValue(cfg.Database),
	}
	if cfg.Username != "" {
		parts = append(parts, "user="+dsnValue(cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+dsnValue(cfg.Password))
	}

	opts := maps.Clone(cfg.Options)
	if opts == nil {
		opts = map[string]string{}
	}
	if _, ok := opts["sslmode"]; !ok {
		opts["sslmode"] = "disable"
	}
	for _, k := range slices.Sorted(maps.Keys(opts)) {
		parts = append(parts, k+"="+dsnValue(opts[k]))
	}
	return strings.Join(parts, " ")
}

// dsnValue quotes a keyword/value DSN value when it contains spaces or quotes.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// GetTableMetadata retrieves metadata for a specified table.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, table, dialect)
}

// RelationKind reports whether rel is a view, a table, or absent.
func (a *Adapter) RelationKind(ctx context.Context, rel core.RelationName) (core.RelationKind, error) {
	return a.RelationKindCommon(ctx, rel, dialect)
}

// LoadCSV loads data from a CSV file into a table using COPY FROM STDIN.
// All columns are created as TEXT type. The table is replaced in one
// transaction and views reading the previous table are recreated.
func (a *Adapter) LoadCSV(ctx context.Context, rel core.RelationName, filePath string) error {
	if a.DB == nil {
		return adapter.ErrNotConnected
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	file, err := os.Open(absPath) //nolint:gosec // seed paths come from the project's seeds directory
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	headers, err := csv.NewReader(file).Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to reset file: %w", err)
	}

	existing, err := a.RelationKind(ctx, rel)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", rel, err)
	}

	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var lost []core.RelationName
	err = conn.Raw(func(driverConn any) error {
		pgxConn := driverConn.(*stdlib.Conn).Conn()

		tx, err := pgxConn.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		lost, err = swapRelation(ctx, pgxTx{tx}, rel, existing, func() error {
			if _, err := tx.Exec(ctx, textTableStatement(rel, headers)); err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
			copySQL := fmt.Sprintf("COPY %s FROM STDIN WITH (FORMAT csv, HEADER true)", dialect.QualifiedName(rel))
			tag, err := tx.Conn().PgConn().CopyFrom(ctx, file, copySQL)
			if err != nil {
				return fmt.Errorf("failed to copy data: %w", err)
			}
			a.Logger.Debug("copied seed rows", slog.String("relation", rel.String()), slog.Int64("rows", tag.RowsAffected()))
			return nil
		})
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return err
	}
	a.warnLost(rel, lost)
	return nil
}

// textTableStatement creates rel with one TEXT column per header.
func textTableStatement(rel core.RelationName, headers []string) string {
	colDefs := make([]string, 0, len(headers))
	for _, col := range headers {
		colDefs = append(colDefs, dialect.QuoteIdent(strings.TrimSpace(col))+" TEXT")
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", dialect.QualifiedName(rel), strings.Join(colDefs, ", "))
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
