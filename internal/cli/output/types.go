package output

// JSON output structures. Field names are stable for scripts.

// ModelResultOutput is one model of a run or build.
type ModelResultOutput struct {
	Model           string `json:"model"`
	Relation        string `json:"relation"`
	Materialization string `json:"materialization"`
	Status          string `json:"status"`
	// Rows is omitted for views and models that did not complete
	Rows        *int64 `json:"rows,omitempty"`
	ExecutionMS int64  `json:"execution_ms"`
	Error       string `json:"error,omitempty"`
}

// TestResultOutput is one evaluated test.
type TestResultOutput struct {
	Name        string `json:"name"`
	Model       string `json:"model"`
	Column      string `json:"column"`
	Kind        string `json:"kind"`
	Severity    string `json:"severity"`
	Status      string `json:"status"`
	Failures    int64  `json:"failures"`
	ExecutionMS int64  `json:"execution_ms"`
	Error       string `json:"error,omitempty"`
}

// TestSummaryOutput counts test outcomes.
type TestSummaryOutput struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Warned  int `json:"warned"`
	Errored int `json:"errored"`
}

// SeedOutput is one loaded seed.
type SeedOutput struct {
	Seed     string `json:"seed"`
	Relation string `json:"relation"`
	File     string `json:"file"`
	LoadMS   int64  `json:"load_ms"`
}

// InvocationOutput is the result of build, run, test or seed.
type InvocationOutput struct {
	RunID     string              `json:"run_id,omitempty"`
	Command   string              `json:"command"`
	Selection string              `json:"selection,omitempty"`
	Status    string              `json:"status"`
	TotalMS   int64               `json:"total_ms"`
	Seeds     []SeedOutput        `json:"seeds,omitempty"`
	Models    []ModelResultOutput `json:"models,omitempty"`
	Tests     []TestResultOutput  `json:"tests,omitempty"`
	Summary   *TestSummaryOutput  `json:"test_summary,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// ModelInfo describes a model in list output.
type ModelInfo struct {
	Name         string   `json:"name"`
	Path         string   `json:"path"`
	Relation     string   `json:"relation"`
	Materialized string   `json:"materialized"`
	Tags         []string `json:"tags,omitempty"`
	DependsOn    []string `json:"depends_on"`
	Refs         []string `json:"refs"`
	Tests        int      `json:"tests"`
	FilePath     string   `json:"file_path"`
}

// ListOutput is the list command result.
type ListOutput struct {
	Selection string      `json:"selection"`
	Models    []ModelInfo `json:"models"`
	Seeds     []string    `json:"seeds"`
}

// DAGNode is one model of a DAG level.
type DAGNode struct {
	Path      string   `json:"path"`
	DependsOn []string `json:"depends_on"`
	UsedBy    []string `json:"used_by"`
}

// DAGLevel groups models that may run together.
type DAGLevel struct {
	Level  int       `json:"level"`
	Models []DAGNode `json:"models"`
}

// DAGOutput is the dag command result.
type DAGOutput struct {
	Levels      []DAGLevel `json:"levels"`
	TotalModels int        `json:"total_models"`
	TotalEdges  int        `json:"total_edges"`
}

// RunSummary is one row of run history.
type RunSummary struct {
	ID          string `json:"id"`
	Command     string `json:"command"`
	Selection   string `json:"selection,omitempty"`
	Environment string `json:"environment"`
	Status      string `json:"status"`
	StartedAt   string `json:"started_at"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RunDetail is a run with its model and test rows.
type RunDetail struct {
	RunSummary
	Models []ModelResultOutput `json:"models"`
	Tests  []TestResultOutput  `json:"tests"`
}

// RenderOutput is a model's SQL with refs resolved.
type RenderOutput struct {
	Model           string `json:"model"`
	Relation        string `json:"relation"`
	Materialization string `json:"materialization"`
	SQL             string `json:"sql"`
}
