package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/strata/pkg/core"
)

// AcquireLock takes the project lock for owner. The lock is granted when it
// is free, already held by owner, or older than ttl (a crashed holder). It
// returns a *LockHeldError otherwise. The upsert is a single statement, so
// two processes racing for the lock cannot both win.
func (s *SQLiteStore) AcquireLock(ctx context.Context, owner, command string, ttl time.Duration) error {
	if s.db == nil {
		return ErrNotOpen
	}

	now := time.Now().UTC()
	staleBefore := now.Add(-ttl).UnixNano()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO project_lock (id, owner, command, acquired_unix) VALUES (1, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET owner = excluded.owner, command = excluded.command, acquired_unix = excluded.acquired_unix
		 WHERE project_lock.owner = excluded.owner OR project_lock.acquired_unix < ?`,
		owner, command, now.UnixNano(), staleBefore,
	)
	if err != nil {
		return fmt.Errorf("failed to acquire project lock: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 1 {
		s.logger.Debug("project lock acquired", slog.String("owner", owner), slog.String("command", command))
		return nil
	}

	holder, err := s.GetLock(ctx)
	if err != nil {
		return err
	}
	if holder == nil {
		// released between the upsert and the read
		return s.AcquireLock(ctx, owner, command, ttl)
	}
	return &LockHeldError{Lock: holder}
}

// ReleaseLock frees the project lock if owner holds it.
func (s *SQLiteStore) ReleaseLock(ctx context.Context, owner string) error {
	if s.db == nil {
		return ErrNotOpen
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM project_lock WHERE owner = ?`, owner); err != nil {
		return fmt.Errorf("failed to release project lock: %w", err)
	}
	s.logger.Debug("project lock released", slog.String("owner", owner))
	return nil
}

// GetLock returns the current holder, or nil when the project is unlocked.
func (s *SQLiteStore) GetLock(ctx context.Context) (*core.ProjectLock, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	var (
		lock     core.ProjectLock
		acquired int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT owner, command, acquired_unix FROM project_lock WHERE id = 1`,
	).Scan(&lock.Owner, &lock.Command, &acquired)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project lock: %w", err)
	}
	lock.AcquiredAt = time.Unix(0, acquired).UTC()
	return &lock, nil
}
