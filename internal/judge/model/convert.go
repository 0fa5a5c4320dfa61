package model

import "judgemicro/internal/judge/sandbox/verdict"

// ResponseFromVerdict maps an engine verdict onto the wire response.
func ResponseFromVerdict(v *verdict.Verdict) JudgeResponse {
	if v == nil {
		return JudgeResponse{
			Status:  string(verdict.StatusInternalError),
			Message: "verdict is missing",
		}
	}
	resp := JudgeResponse{
		Status:        string(v.Status),
		Message:       v.Message,
		Match:         v.Match,
		Stdout:        v.Stdout,
		Stderr:        v.Stderr,
		CompileOutput: v.CompileOutput,
		Expected:      v.Expected,
		Actual:        v.Actual,
		ExitCode:      v.ExitCode,
		ConfigIndex:   v.ConfigIndex,
	}
	metrics := ExecutionMetrics{
		TotalExecutionTime:   v.TotalWall,
		CompileExecutionTime: v.CompileWall,
		TestExecutionTime:    v.TestWall,
		TimeMS:               v.TimeMS,
		CompileTimeMS:        v.CompileTimeMS,
		CPUUtime:             v.CPUUserTime,
		CPUStime:             v.CPUSysTime,
		MaxRSSMB:             v.MaxRSSMB,
	}
	if metrics != (ExecutionMetrics{}) {
		resp.Metrics = &metrics
	}
	return resp
}

// SummaryFromVerdicts maps batch statistics onto the wire summary.
func SummaryFromVerdicts(s verdict.Summary) BatchSummary {
	return BatchSummary{
		TotalTests:         s.TotalTests,
		SuccessCount:       s.SuccessCount,
		ErrorCount:         s.ErrorCount,
		SuccessRate:        s.SuccessRate,
		TotalExecutionTime: s.TotalExecutionTime,
		AverageTimePerTest: s.AverageTimePerTest,
	}
}
