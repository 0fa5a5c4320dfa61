package verdict

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"judgemicro/pkg/errors"
)

// Decode parses a runner-emitted result.json into a Verdict. Field
// extraction is tolerant: wrongly typed or missing fields become absent
// rather than failing the whole result. Only malformed JSON is an
// error; the caller converts that into an internal-error verdict.
func Decode(raw []byte) (*Verdict, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrapf(err, errors.ResultInvalid, "decode runner result")
	}

	v := &Verdict{
		Message:       stringField(fields, "message"),
		Stdout:        stringField(fields, "stdout"),
		Stderr:        stringField(fields, "stderr"),
		CompileOutput: stringField(fields, "compile_output"),
		Match:         boolField(fields, "match"),
		Actual:        objectField(fields, "actual"),
		Expected:      objectField(fields, "expected"),
		ExitCode:      intField(fields, "exit_code"),
		TimeMS:        floatField(fields, "time_ms"),
		CompileTimeMS: floatField(fields, "compile_time_ms"),
		CPUUserTime:   floatField(fields, "cpu_utime"),
		CPUSysTime:    floatField(fields, "cpu_stime"),
		MaxRSSMB:      floatField(fields, "maxrss_mb"),

		// Runner-reported walls; the engine overwrites these with its
		// own observations after decoding.
		TotalWall:   floatField(fields, "total_execution_time"),
		CompileWall: floatField(fields, "compile_execution_time"),
		TestWall:    floatField(fields, "test_execution_time"),
	}

	rawStatus := stringField(fields, "status")
	status, known := CoerceStatus(rawStatus, v.ExitCode)
	v.Status = status
	if !known && v.Message == "" {
		if rawStatus == "" {
			v.Message = "runner result has no status"
		} else {
			v.Message = fmt.Sprintf("unrecognized runner status %q", rawStatus)
		}
	}
	return v, nil
}

// CoerceStatus maps a runner status token, case-insensitively, onto a
// verdict status. A bare "error" with a nonzero exit code is the
// runner reporting a crashed run; without one it is indistinguishable
// from an engine-side failure. Unknown tokens return ok=false and
// classify as internal errors.
func CoerceStatus(raw string, exitCode *int) (status Status, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESS":
		return StatusSuccess, true
	case "COMPILE_ERROR":
		return StatusCompileError, true
	case "COMPILE_TIMEOUT":
		return StatusCompileTimeout, true
	case "TIMEOUT":
		return StatusRuntimeTimeout, true
	case "RUNTIME_ERROR":
		return StatusRuntimeError, true
	case "TIMEOUT_ERROR":
		// Legacy runner token for a failed timeout wrapper.
		return StatusInternalError, true
	case "ERROR":
		if exitCode != nil && *exitCode != 0 {
			return StatusRuntimeError, true
		}
		return StatusInternalError, true
	default:
		return StatusInternalError, false
	}
}

// SanitizeUTF8 makes raw process output safe to carry in a JSON string
// by replacing invalid byte sequences with the replacement rune.
func SanitizeUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func boolField(fields map[string]any, key string) *bool {
	b, ok := fields[key].(bool)
	if !ok {
		return nil
	}
	return &b
}

func objectField(fields map[string]any, key string) map[string]any {
	m, _ := fields[key].(map[string]any)
	return m
}

func floatField(fields map[string]any, key string) *float64 {
	f, ok := fields[key].(float64)
	if !ok {
		return nil
	}
	return &f
}

func intField(fields map[string]any, key string) *int {
	f, ok := fields[key].(float64)
	if !ok {
		return nil
	}
	i := int(f)
	return &i
}
