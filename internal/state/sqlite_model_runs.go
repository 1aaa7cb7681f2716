package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/leapstack-labs/strata/pkg/core"
)

// RecordModelRun inserts a model run. ID and StartedAt are filled in when
// empty.
func (s *SQLiteStore) RecordModelRun(ctx context.Context, mr *core.ModelRun) error {
	if s.db == nil {
		return ErrNotOpen
	}

	if mr.ID == "" {
		mr.ID = generateID()
	}
	if mr.StartedAt.IsZero() {
		mr.StartedAt = time.Now().UTC()
	}
	if mr.Status == "" {
		mr.Status = core.ModelRunStatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_runs (id, run_id, model_name, materialization, relation, status, rows_affected, started_at, error, execution_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mr.ID, mr.RunID, mr.ModelName, string(mr.Materialization), mr.Relation, string(mr.Status),
		mr.RowsAffected, mr.StartedAt, nullString(mr.Error), mr.ExecutionMS,
	)
	if err != nil {
		return fmt.Errorf("failed to record model run: %w", err)
	}
	return nil
}

// UpdateModelRun moves a model run to a new status. Entering running resets
// the start time; terminal statuses set the completion time.
func (s *SQLiteStore) UpdateModelRun(ctx context.Context, id string, status core.ModelRunStatus, rows int64, errMsg string, executionMS int64) error {
	if s.db == nil {
		return ErrNotOpen
	}

	now := time.Now().UTC()
	var query string
	args := []any{string(status), rows, nullString(errMsg), executionMS, now, id}

	switch status {
	case core.ModelRunStatusRunning:
		query = `UPDATE model_runs SET status = ?, rows_affected = ?, error = ?, execution_ms = ?, started_at = ? WHERE id = ?`
	case core.ModelRunStatusPending:
		query = `UPDATE model_runs SET status = ?, rows_affected = ?, error = ?, execution_ms = ? WHERE id = ?`
		args = []any{string(status), rows, nullString(errMsg), executionMS, id}
	default:
		query = `UPDATE model_runs SET status = ?, rows_affected = ?, error = ?, execution_ms = ?, completed_at = ? WHERE id = ?`
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update model run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("model run not found: %s", id)
	}
	return nil
}

// GetModelRunsForRun returns the model runs of a run in recorded order.
func (s *SQLiteStore) GetModelRunsForRun(ctx context.Context, runID string) ([]*core.ModelRun, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, model_name, materialization, relation, status, rows_affected, started_at, completed_at, error, execution_ms
		 FROM model_runs WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get model runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*core.ModelRun
	for rows.Next() {
		var (
			mr          core.ModelRun
			mat, status string
			completedAt sql.NullTime
			errMsg      sql.NullString
		)
		if err := rows.Scan(&mr.ID, &mr.RunID, &mr.ModelName, &mat, &mr.Relation, &status,
			&mr.RowsAffected, &mr.StartedAt, &completedAt, &errMsg, &mr.ExecutionMS); err != nil {
			return nil, fmt.Errorf("failed to scan model run: %w", err)
		}
		mr.Materialization = core.Materialization(mat)
		mr.Status = core.ModelRunStatus(status)
		if completedAt.Valid {
			mr.CompletedAt = &completedAt.Time
		}
		mr.Error = errMsg.String
		runs = append(runs, &mr)
	}
	return runs, rows.Err()
}
