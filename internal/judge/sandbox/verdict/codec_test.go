package verdict

import (
	"strings"
	"testing"
	"unicode/utf8"

	pkgerrors "judgemicro/pkg/errors"
)

func TestDecode(t *testing.T) {
	raw := `{
		"status": "success",
		"match": true,
		"actual": {"a": 42},
		"expected": {"a": 42},
		"stdout": "solve done",
		"exit_code": 0,
		"time_ms": 12.5,
		"compile_time_ms": 840.0,
		"cpu_utime": 0.01,
		"maxrss_mb": 3.2,
		"total_execution_time": 1.5
	}`
	v, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v.Status != StatusSuccess || !v.IsSuccess() {
		t.Fatalf("unexpected status %q", v.Status)
	}
	if v.Match == nil || !*v.Match {
		t.Fatalf("match not decoded")
	}
	if v.Actual["a"] != float64(42) {
		t.Fatalf("actual not decoded: %v", v.Actual)
	}
	if v.ExitCode == nil || *v.ExitCode != 0 {
		t.Fatalf("exit code not decoded")
	}
	if v.TimeMS == nil || *v.TimeMS != 12.5 || v.MaxRSSMB == nil || *v.MaxRSSMB != 3.2 {
		t.Fatalf("metrics not decoded: %+v", v)
	}
	if v.TotalWall == nil || *v.TotalWall != 1.5 {
		t.Fatalf("runner wall not decoded")
	}
	if v.CPUSysTime != nil {
		t.Fatalf("absent field must stay nil")
	}
}

func TestDecodeToleratesWrongTypes(t *testing.T) {
	raw := `{"status": "SUCCESS", "match": "yes", "exit_code": "zero", "stdout": 5, "actual": [1, 2]}`
	v, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v.Match != nil || v.ExitCode != nil || v.Stdout != "" || v.Actual != nil {
		t.Fatalf("wrongly typed fields must decode as absent: %+v", v)
	}
	if v.Status != StatusSuccess {
		t.Fatalf("unexpected status %q", v.Status)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte("result.json got truncated")); !pkgerrors.Is(err, pkgerrors.ResultInvalid) {
		t.Fatalf("expected ResultInvalid, got %v", err)
	}
}

func TestDecodeUnknownStatus(t *testing.T) {
	v, err := Decode([]byte(`{"status": "EXPLODED"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v.Status != StatusInternalError || !strings.Contains(v.Message, `"EXPLODED"`) {
		t.Fatalf("unexpected verdict %+v", v)
	}

	v, err = Decode([]byte(`{}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v.Status != StatusInternalError || v.Message != "runner result has no status" {
		t.Fatalf("unexpected verdict %+v", v)
	}
}

func TestCoerceStatus(t *testing.T) {
	cases := []struct {
		raw      string
		exitCode *int
		want     Status
		known    bool
	}{
		{"SUCCESS", nil, StatusSuccess, true},
		{"Timeout", nil, StatusRuntimeTimeout, true},
		{" compile_error ", nil, StatusCompileError, true},
		{"COMPILE_TIMEOUT", nil, StatusCompileTimeout, true},
		{"RUNTIME_ERROR", nil, StatusRuntimeError, true},
		{"timeout_error", nil, StatusInternalError, true},
		{"ERROR", Int(139), StatusRuntimeError, true},
		{"ERROR", Int(0), StatusInternalError, true},
		{"ERROR", nil, StatusInternalError, true},
		{"NONSENSE", nil, StatusInternalError, false},
		{"", nil, StatusInternalError, false},
	}
	for _, c := range cases {
		got, ok := CoerceStatus(c.raw, c.exitCode)
		if got != c.want || ok != c.known {
			t.Fatalf("CoerceStatus(%q) = %q/%v, want %q/%v", c.raw, got, ok, c.want, c.known)
		}
	}
}

func TestSanitizeUTF8(t *testing.T) {
	out := SanitizeUTF8([]byte{'o', 'k', 0xff, 0xfe})
	if !utf8.ValidString(out) {
		t.Fatalf("output still invalid: %q", out)
	}
	if !strings.HasPrefix(out, "ok") {
		t.Fatalf("valid prefix lost: %q", out)
	}
	if SanitizeUTF8([]byte("clean")) != "clean" {
		t.Fatalf("clean input must pass through")
	}
}
