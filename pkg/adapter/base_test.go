package adapter

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/strata/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockBase(t *testing.T) (*BaseSQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &BaseSQLAdapter{DB: db}, mock
}

func TestBaseSQLAdapter_Disconnected(t *testing.T) {
	ctx := context.Background()
	base := &BaseSQLAdapter{}

	assert.False(t, base.IsConnected())
	assert.NoError(t, base.Close())
	assert.ErrorIs(t, base.Exec(ctx, "SELECT 1"), ErrNotConnected)

	rows, err := base.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Nil(t, rows)

	_, err = base.RelationKindCommon(ctx, core.RelationName{Name: "x"}, &core.Dialect{})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	t.Run("materialization statement", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectExec(`CREATE OR REPLACE VIEW "main"."stg_orders" AS`).WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, base.Exec(context.Background(), `CREATE OR REPLACE VIEW "main"."stg_orders" AS SELECT 1`))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("engine error is wrapped", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectExec("CREATE TABLE").WillReturnError(assert.AnError)

		err := base.Exec(context.Background(), `CREATE TABLE "main"."broken" AS SELECT missing`)
		require.Error(t, err)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "failed to execute SQL")
	})
}

func TestBaseSQLAdapter_Query(t *testing.T) {
	t.Run("rows are handed to the caller", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectQuery("SELECT COUNT").
			WillReturnRows(sqlmock.NewRows([]string{"failures"}).AddRow(2))

		rows, err := base.Query(context.Background(), `SELECT COUNT(*) FROM "main"."stg_orders" WHERE status IS NULL`)
		require.NoError(t, err)
		defer func() { _ = rows.Close() }()

		require.True(t, rows.Next())
		var n int64
		require.NoError(t, rows.Scan(&n))
		assert.Equal(t, int64(2), n)
	})

	t.Run("engine error is wrapped", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

		rows, err := base.Query(context.Background(), "SELECT nope")
		require.Error(t, err)
		assert.Nil(t, rows)
		assert.Contains(t, err.Error(), "failed to execute query")
	})
}

func TestBaseSQLAdapter_Close(t *testing.T) {
	base, mock := newMockBase(t)
	mock.ExpectClose()

	assert.True(t, base.IsConnected())
	require.NoError(t, base.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseQualifiedName(t *testing.T) {
	d := &core.Dialect{DefaultSchema: "main"}
	assert.Equal(t, core.RelationName{Schema: "analytics", Name: "orders"}, ParseQualifiedName("analytics.orders", d))
	assert.Equal(t, core.RelationName{Schema: "main", Name: "orders"}, ParseQualifiedName("orders", d))
}

func TestBaseSQLAdapter_RelationKindCommon(t *testing.T) {
	duck := &core.Dialect{Name: "duckdb", DefaultSchema: "main", Placeholder: core.PlaceholderQuestion}

	tests := []struct {
		name      string
		rel       core.RelationName
		setupMock func(mock sqlmock.Sqlmock)
		want      core.RelationKind
		expectErr bool
	}{
		{
			name: "view",
			rel:  core.RelationName{Schema: "main", Name: "stg_orders"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT table_type").
					WithArgs("main", "stg_orders").
					WillReturnRows(sqlmock.NewRows([]string{"table_type"}).AddRow("VIEW"))
			},
			want: core.RelationView,
		},
		{
			name: "base table with default schema",
			rel:  core.RelationName{Name: "orders"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT table_type").
					WithArgs("main", "orders").
					WillReturnRows(sqlmock.NewRows([]string{"table_type"}).AddRow("BASE TABLE"))
			},
			want: core.RelationTable,
		},
		{
			name: "missing relation",
			rel:  core.RelationName{Schema: "main", Name: "nope"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT table_type").
					WithArgs("main", "nope").
					WillReturnRows(sqlmock.NewRows([]string{"table_type"}))
			},
			want: core.RelationNone,
		},
		{
			name: "query error",
			rel:  core.RelationName{Schema: "main", Name: "orders"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT table_type").WillReturnError(assert.AnError)
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			tt.setupMock(mock)

			base := &BaseSQLAdapter{DB: db}
			got, err := base.RelationKindCommon(context.Background(), tt.rel, duck)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBaseSQLAdapter_GetTableMetadataCommon(t *testing.T) {
	pg := &core.Dialect{Name: "postgres", DefaultSchema: "public", Placeholder: core.PlaceholderDollar}

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`information_schema.columns\s+WHERE table_schema = \$1 AND table_name = \$2`).
		WithArgs("public", "customers").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
			AddRow("id", "integer", "NO", 1).
			AddRow("email", "text", "YES", 2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "public"."customers"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	base := &BaseSQLAdapter{DB: db}
	meta, err := base.GetTableMetadataCommon(context.Background(), "customers", pg)
	require.NoError(t, err)

	assert.Equal(t, "public", meta.Schema)
	assert.Equal(t, int64(42), meta.RowCount)
	require.Len(t, meta.Columns, 2)
	assert.False(t, meta.Columns[0].Nullable)
	assert.True(t, meta.Columns[1].Nullable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
