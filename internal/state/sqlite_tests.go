package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/leapstack-labs/strata/pkg/core"
)

// RecordTestResult stores the outcome of one assertion.
func (s *SQLiteStore) RecordTestResult(ctx context.Context, tr *core.TestRun) error {
	if s.db == nil {
		return ErrNotOpen
	}

	if tr.ID == "" {
		tr.ID = generateID()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO test_results (id, run_id, name, model_name, column_name, kind, severity, status, failures, error, execution_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.RunID, tr.Name, tr.ModelName, tr.ColumnName, string(tr.Kind), string(tr.Severity),
		string(tr.Status), tr.Failures, nullString(tr.Error), tr.ExecutionMS, tr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record test result: %w", err)
	}
	return nil
}

// GetTestResultsForRun returns the test results of a run in recorded order.
func (s *SQLiteStore) GetTestResultsForRun(ctx context.Context, runID string) ([]*core.TestRun, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, name, model_name, column_name, kind, severity, status, failures, error, execution_ms, created_at
		 FROM test_results WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get test results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*core.TestRun
	for rows.Next() {
		var (
			tr                     core.TestRun
			kind, severity, status string
			errMsg                 sql.NullString
		)
		if err := rows.Scan(&tr.ID, &tr.RunID, &tr.Name, &tr.ModelName, &tr.ColumnName, &kind, &severity,
			&status, &tr.Failures, &errMsg, &tr.ExecutionMS, &tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan test result: %w", err)
		}
		tr.Kind = core.AssertionKind(kind)
		tr.Severity = core.Severity(severity)
		tr.Status = core.AssertionStatus(status)
		tr.Error = errMsg.String
		results = append(results, &tr)
	}
	return results, rows.Err()
}
