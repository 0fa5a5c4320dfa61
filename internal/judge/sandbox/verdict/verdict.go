// Package verdict defines the typed outcome of one sandbox execution
// and the codec that normalizes runner-emitted results into it.
package verdict

import "fmt"

// Status classifies the outcome of one execution.
type Status string

const (
	StatusSuccess        Status = "SUCCESS"
	StatusCompileError   Status = "COMPILE_ERROR"
	StatusCompileTimeout Status = "COMPILE_TIMEOUT"
	StatusRuntimeTimeout Status = "TIMEOUT"
	StatusRuntimeError   Status = "RUNTIME_ERROR"
	StatusInternalError  Status = "ERROR"
)

// Verdict is the normalized outcome of one execution. Optional fields
// use pointers so absent runner data stays absent instead of reading as
// zero values. Wall fields hold engine-observed seconds and override
// anything the runner reported.
type Verdict struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`

	Match    *bool          `json:"match,omitempty"`
	Actual   map[string]any `json:"actual,omitempty"`
	Expected map[string]any `json:"expected,omitempty"`

	Stdout        string `json:"stdout,omitempty"`
	Stderr        string `json:"stderr,omitempty"`
	CompileOutput string `json:"compile_output,omitempty"`
	ExitCode      *int   `json:"exit_code,omitempty"`

	TotalWall   *float64 `json:"total_execution_time,omitempty"`
	CompileWall *float64 `json:"compile_execution_time,omitempty"`
	TestWall    *float64 `json:"test_execution_time,omitempty"`

	// Runner-reported resource metrics, passed through untouched.
	TimeMS        *float64 `json:"time_ms,omitempty"`
	CompileTimeMS *float64 `json:"compile_time_ms,omitempty"`
	CPUUserTime   *float64 `json:"cpu_utime,omitempty"`
	CPUSysTime    *float64 `json:"cpu_stime,omitempty"`
	MaxRSSMB      *float64 `json:"maxrss_mb,omitempty"`

	// ConfigIndex ties a batch-optimized verdict back to its input
	// config position.
	ConfigIndex *int `json:"config_index,omitempty"`
}

// IsSuccess reports whether the execution completed with a successful
// run, regardless of whether the outputs matched.
func (v *Verdict) IsSuccess() bool {
	return v.Status == StatusSuccess
}

// WithConfigIndex tags the verdict with its batch position.
func (v *Verdict) WithConfigIndex(i int) *Verdict {
	v.ConfigIndex = Int(i)
	return v
}

// Clone returns a shallow copy with its own ConfigIndex slot, used when
// fanning one compile failure out across a batch.
func (v *Verdict) Clone() *Verdict {
	c := *v
	c.ConfigIndex = nil
	return &c
}

// NewInternal builds an engine-side failure verdict.
func NewInternal(reason string) *Verdict {
	return &Verdict{Status: StatusInternalError, Message: reason}
}

// NewCompileTimeout builds a compile-stage timeout verdict.
func NewCompileTimeout(limitSec int) *Verdict {
	return &Verdict{
		Status:  StatusCompileTimeout,
		Message: fmt.Sprintf("Compilation exceeded timeout limit of %d seconds", limitSec),
	}
}

// NewCompileError builds a failed-compilation verdict carrying the
// compiler's output.
func NewCompileError(output string) *Verdict {
	return &Verdict{
		Status:        StatusCompileError,
		Message:       "Compilation failed",
		CompileOutput: output,
	}
}

// NewRuntimeTimeout builds an execution-stage timeout verdict.
func NewRuntimeTimeout(limitSec int) *Verdict {
	return &Verdict{
		Status:  StatusRuntimeTimeout,
		Message: fmt.Sprintf("Test execution exceeded timeout limit of %d seconds", limitSec),
	}
}

// NewRuntimeError builds a verdict for a run that exited nonzero
// without leaving a readable result behind.
func NewRuntimeError(exitCode int, reason string) *Verdict {
	return &Verdict{
		Status:   StatusRuntimeError,
		Message:  reason,
		ExitCode: Int(exitCode),
	}
}

// Summary aggregates the outcome of a batch run.
type Summary struct {
	TotalTests         int     `json:"total_tests"`
	SuccessCount       int     `json:"success_count"`
	ErrorCount         int     `json:"error_count"`
	SuccessRate        float64 `json:"success_rate"`
	TotalExecutionTime float64 `json:"total_execution_time"`
	AverageTimePerTest float64 `json:"average_time_per_test"`
}

// Summarize computes batch statistics over verdicts and the wall time
// the whole batch took.
func Summarize(verdicts []*Verdict, totalWall float64) Summary {
	s := Summary{
		TotalTests:         len(verdicts),
		TotalExecutionTime: totalWall,
	}
	for _, v := range verdicts {
		if v != nil && v.IsSuccess() {
			s.SuccessCount++
		}
	}
	s.ErrorCount = s.TotalTests - s.SuccessCount
	if s.TotalTests > 0 {
		s.SuccessRate = float64(s.SuccessCount) / float64(s.TotalTests)
		s.AverageTimePerTest = totalWall / float64(s.TotalTests)
	}
	return s
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
