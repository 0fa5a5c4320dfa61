package model

// SolveParam describes one argument passed to the solve function.
type SolveParam struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	InputValue any    `json:"input_value"`
}

// CompilerSettings carries optional per-submission compiler knobs.
type CompilerSettings struct {
	Standard string `json:"standard,omitempty"`
	Flags    string `json:"flags,omitempty"`
}

// ResourceLimits overrides the engine defaults for one submission.
// Zero values keep the deployment defaults.
type ResourceLimits struct {
	CompileTimeout   int     `json:"compile_timeout,omitempty"`
	ExecutionTimeout int     `json:"execution_timeout,omitempty"`
	MemoryLimit      string  `json:"memory_limit,omitempty"`
	CPULimit         float64 `json:"cpu_limit,omitempty"`
}

// JudgeRequest is one submission to evaluate.
type JudgeRequest struct {
	Language         string            `json:"language"`
	UserCode         string            `json:"user_code"`
	SolveParams      []SolveParam      `json:"solve_params"`
	Expected         map[string]any    `json:"expected"`
	FunctionType     string            `json:"function_type"`
	CompilerSettings *CompilerSettings `json:"compiler_settings,omitempty"`
	ResourceLimits   *ResourceLimits   `json:"resource_limits,omitempty"`
	ShowLogs         bool              `json:"show_logs,omitempty"`
}

// BatchJudgeRequest evaluates independent submissions concurrently.
type BatchJudgeRequest struct {
	Tests        []JudgeRequest `json:"tests"`
	ShowProgress bool           `json:"show_progress,omitempty"`
}

// TestConfig is one test variant for an optimized batch run.
type TestConfig struct {
	SolveParams  []SolveParam   `json:"solve_params"`
	Expected     map[string]any `json:"expected"`
	FunctionType string         `json:"function_type"`
}

// OptimizedBatchRequest compiles the submission once and runs every
// config against the same build.
type OptimizedBatchRequest struct {
	Language         string            `json:"language"`
	UserCode         string            `json:"user_code"`
	Configs          []TestConfig      `json:"configs"`
	CompilerSettings *CompilerSettings `json:"compiler_settings,omitempty"`
	ResourceLimits   *ResourceLimits   `json:"resource_limits,omitempty"`
	ShowProgress     bool              `json:"show_progress,omitempty"`
	ShowLogs         bool              `json:"show_logs,omitempty"`
}
