package model

// ExecutionMetrics aggregates timing and resource usage for one run.
// Engine-observed walls are authoritative, the remaining fields pass
// through whatever the runner reported.
type ExecutionMetrics struct {
	TotalExecutionTime   *float64 `json:"total_execution_time,omitempty"`
	CompileExecutionTime *float64 `json:"compile_execution_time,omitempty"`
	TestExecutionTime    *float64 `json:"test_execution_time,omitempty"`
	TimeMS               *float64 `json:"time_ms,omitempty"`
	CompileTimeMS        *float64 `json:"compile_time_ms,omitempty"`
	CPUUtime             *float64 `json:"cpu_utime,omitempty"`
	CPUStime             *float64 `json:"cpu_stime,omitempty"`
	MaxRSSMB             *float64 `json:"maxrss_mb,omitempty"`
}

// JudgeResponse is the external form of one verdict.
type JudgeResponse struct {
	Status        string            `json:"status"`
	Message       string            `json:"message,omitempty"`
	Match         *bool             `json:"match,omitempty"`
	Stdout        string            `json:"stdout,omitempty"`
	Stderr        string            `json:"stderr,omitempty"`
	CompileOutput string            `json:"compile_output,omitempty"`
	Expected      map[string]any    `json:"expected,omitempty"`
	Actual        map[string]any    `json:"actual,omitempty"`
	Metrics       *ExecutionMetrics `json:"metrics,omitempty"`
	ExitCode      *int              `json:"exit_code,omitempty"`
	ErrorDetails  string            `json:"error_details,omitempty"`
	ConfigIndex   *int              `json:"config_index,omitempty"`
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	TotalTests         int     `json:"total_tests"`
	SuccessCount       int     `json:"success_count"`
	ErrorCount         int     `json:"error_count"`
	SuccessRate        float64 `json:"success_rate"`
	TotalExecutionTime float64 `json:"total_execution_time"`
	AverageTimePerTest float64 `json:"average_time_per_test"`
	OptimizationNote   string  `json:"optimization_note,omitempty"`
}

// BatchJudgeResponse carries per-test results plus the aggregate
// summary, positionally aligned with the request.
type BatchJudgeResponse struct {
	Results []JudgeResponse `json:"results"`
	Summary BatchSummary    `json:"summary"`
}
