// Package state persists run history and the project lock in SQLite.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/strata/pkg/core"
)

// Store records invocations and serializes mutating ones.
type Store interface {
	CreateRun(ctx context.Context, command, selection, env string) (*core.Run, error)
	CompleteRun(ctx context.Context, id string, status core.RunStatus, errMsg string) error
	GetRun(ctx context.Context, id string) (*core.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*core.Run, error)

	RecordModelRun(ctx context.Context, mr *core.ModelRun) error
	UpdateModelRun(ctx context.Context, id string, status core.ModelRunStatus, rows int64, errMsg string, executionMS int64) error
	GetModelRunsForRun(ctx context.Context, runID string) ([]*core.ModelRun, error)

	RecordTestResult(ctx context.Context, tr *core.TestRun) error
	GetTestResultsForRun(ctx context.Context, runID string) ([]*core.TestRun, error)

	AcquireLock(ctx context.Context, owner, command string, ttl time.Duration) error
	ReleaseLock(ctx context.Context, owner string) error
	GetLock(ctx context.Context) (*core.ProjectLock, error)

	Close() error
}

// Store errors.
var (
	ErrNotOpen     = errors.New("database not opened")
	ErrRunNotFound = errors.New("run not found")
	ErrLockHeld    = errors.New("project is locked")
)

// LockHeldError reports the current holder of the project lock.
type LockHeldError struct {
	Lock *core.ProjectLock
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("project is locked by %s (%s) since %s",
		e.Lock.Owner, e.Lock.Command, e.Lock.AcquiredAt.Format(time.RFC3339))
}

// Is matches ErrLockHeld.
func (e *LockHeldError) Is(target error) bool { return target == ErrLockHeld }
