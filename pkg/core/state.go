package core

import "time"

// RunStatus represents the status of an invocation.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run represents one build, run, test, or seed invocation.
type Run struct {
	ID          string
	Command     string
	Selection   string
	Environment string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// ModelRunStatus represents the status of an individual model execution.
type ModelRunStatus string

// Model run status constants.
const (
	ModelRunStatusPending ModelRunStatus = "pending"
	ModelRunStatusRunning ModelRunStatus = "running"
	ModelRunStatusSuccess ModelRunStatus = "success"
	ModelRunStatusFailed  ModelRunStatus = "failed"
	ModelRunStatusSkipped ModelRunStatus = "skipped"
)

// ModelRun represents a single execution of a model within a run.
type ModelRun struct {
	ID              string
	RunID           string
	ModelName       string
	Materialization Materialization
	Relation        string
	Status          ModelRunStatus
	RowsAffected    int64
	StartedAt       time.Time
	CompletedAt     *time.Time
	Error           string
	ExecutionMS     int64
}

// TestRun is the persisted outcome of one assertion within a run.
type TestRun struct {
	ID          string
	RunID       string
	Name        string
	ModelName   string
	ColumnName  string
	Kind        AssertionKind
	Severity    Severity
	Status      AssertionStatus
	Failures    int64
	Error       string
	ExecutionMS int64
	CreatedAt   time.Time
}

// ProjectLock describes the holder of the project lock.
type ProjectLock struct {
	// Owner identifies the holding process, e.g. "host:pid"
	Owner      string
	Command    string
	AcquiredAt time.Time
}

// ModelResult is the outcome of materializing one model in an invocation.
type ModelResult struct {
	Model           string
	Relation        string
	Materialization Materialization
	Status          ModelRunStatus
	// Rows is the table row count; -1 when not counted (views, failures)
	Rows     int64
	Duration time.Duration
	Err      error
}
