// Package validate rejects malformed or abusive judge submissions
// before any sandbox is provisioned. Every rejection carries a
// submission validation error code, so callers surface them as
// client errors instead of verdicts.
package validate

import (
	"encoding/json"
	"slices"
	"strings"
	"unicode/utf8"

	units "github.com/docker/go-units"
	"github.com/google/shlex"

	"judgemicro/internal/judge/sandbox/engine"
	"judgemicro/internal/judge/sandbox/lang"
	pkgerrors "judgemicro/pkg/errors"
)

const (
	// MaxCodeLength is the submission size cap in characters.
	MaxCodeLength = 50000
	// MaxBatchSize caps the number of tests in one batch request.
	MaxBatchSize = 100
)

// ParameterTypes and FunctionTypes enumerate the solve contract types
// the runner images understand.
var (
	ParameterTypes = []string{"int", "float", "double", "char", "string", "array_int", "array_float", "array_char"}
	FunctionTypes  = []string{"int", "float", "double", "char", "string", "void"}
)

// Code checks the submission source for emptiness, size and denylisted
// fragments.
func Code(code string) error {
	if strings.TrimSpace(code) == "" {
		return pkgerrors.New(pkgerrors.CodeEmpty)
	}
	if utf8.RuneCountInString(code) > MaxCodeLength {
		return pkgerrors.Newf(pkgerrors.CodeTooLarge, "source code exceeds %d characters", MaxCodeLength)
	}
	for _, p := range Denylist {
		if strings.Contains(code, p.Token) {
			return pkgerrors.New(pkgerrors.ForbiddenPattern).
				WithDetail("pattern", p.Token).
				WithDetail("reason", p.Reason)
		}
	}
	return nil
}

// Language resolves the submission language and checks the requested
// standard against it. An empty standard is allowed and resolves to
// the language default later.
func Language(reg *lang.Registry, name, standard string) (lang.Language, error) {
	l, err := reg.Lookup(name)
	if err != nil {
		return lang.Language{}, err
	}
	if standard != "" && !l.Supports(standard) {
		return lang.Language{}, pkgerrors.New(pkgerrors.StandardNotSupported).
			WithDetail("language", l.Name).
			WithDetail("standard", standard)
	}
	return l, nil
}

// Flags tokenizes compiler flags with shell word splitting rules.
func Flags(flags string) ([]string, error) {
	if strings.TrimSpace(flags) == "" {
		return nil, nil
	}
	tokens, err := shlex.Split(flags)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.FlagsInvalid)
	}
	return tokens, nil
}

// BatchSize checks the number of tests in a batch request.
func BatchSize(n int) error {
	if n == 0 {
		return pkgerrors.New(pkgerrors.BatchEmpty)
	}
	if n > MaxBatchSize {
		return pkgerrors.Newf(pkgerrors.BatchTooLarge, "batch exceeds %d tests", MaxBatchSize)
	}
	return nil
}

// Limits checks requested resource limits against the engine maxima.
// Zero values are allowed and resolve to defaults later.
func Limits(l engine.Limits) error {
	if l.CompileTimeout < 0 || l.CompileTimeout > engine.MaxLimits.CompileTimeout {
		return pkgerrors.RejectError(pkgerrors.LimitsInvalid, "compile_timeout")
	}
	if l.ExecutionTimeout < 0 || l.ExecutionTimeout > engine.MaxLimits.ExecutionTimeout {
		return pkgerrors.RejectError(pkgerrors.LimitsInvalid, "execution_timeout")
	}
	if l.CPU < 0 || l.CPU > engine.MaxLimits.CPU {
		return pkgerrors.RejectError(pkgerrors.LimitsInvalid, "cpu_limit")
	}
	if l.Memory != "" {
		requested, err := units.RAMInBytes(l.Memory)
		if err != nil {
			return pkgerrors.Wrap(err, pkgerrors.LimitsInvalid)
		}
		ceiling, _ := units.RAMInBytes(engine.MaxLimits.Memory)
		if requested > ceiling {
			return pkgerrors.RejectError(pkgerrors.LimitsInvalid, "memory_limit")
		}
	}
	return nil
}

// Config checks a runner config document for the solve contract fields
// every test needs.
func Config(raw []byte) error {
	var doc struct {
		SolveParams []struct {
			Name       string          `json:"name"`
			Type       string          `json:"type"`
			InputValue json.RawMessage `json:"input_value"`
		} `json:"solve_params"`
		Expected     json.RawMessage `json:"expected"`
		FunctionType string          `json:"function_type"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ConfigInvalid)
	}
	if doc.SolveParams == nil {
		return pkgerrors.RejectError(pkgerrors.ConfigInvalid, "solve_params")
	}
	for i, p := range doc.SolveParams {
		if strings.TrimSpace(p.Name) == "" {
			return pkgerrors.Newf(pkgerrors.ConfigInvalid, "solve_params[%d]: name is required", i)
		}
		if !slices.Contains(ParameterTypes, p.Type) {
			return pkgerrors.Newf(pkgerrors.ConfigInvalid, "solve_params[%d]: unknown parameter type %q", i, p.Type)
		}
		if len(p.InputValue) == 0 {
			return pkgerrors.Newf(pkgerrors.ConfigInvalid, "solve_params[%d]: input_value is required", i)
		}
	}
	if len(doc.Expected) == 0 || string(doc.Expected) == "null" {
		return pkgerrors.RejectError(pkgerrors.ConfigInvalid, "expected")
	}
	if doc.FunctionType == "" {
		return pkgerrors.RejectError(pkgerrors.ConfigInvalid, "function_type")
	}
	if !slices.Contains(FunctionTypes, doc.FunctionType) {
		return pkgerrors.Newf(pkgerrors.ConfigInvalid, "unknown function type %q", doc.FunctionType)
	}
	return nil
}
