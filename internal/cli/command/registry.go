package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Registry returns all CLI commands keyed by action.
func Registry() map[string]Command {
	commands := []Command{
		{
			Action:       "submit",
			Method:       "POST",
			PathTemplate: "/judge/submit",
			Fields:       submitFields(),
		},
		{
			Action:       "submit-async",
			Method:       "POST",
			PathTemplate: "/judge/submit/async",
			Fields:       submitFields(),
		},
		{
			Action:       "batch",
			Method:       "POST",
			PathTemplate: "/judge/batch",
			Fields: []Field{
				{Name: "tests", Prompt: "tests (JSON array)", Type: FieldJSON, Required: true},
				{Name: "tests_file", Prompt: "tests_file", Type: FieldFile, Required: false},
				{Name: "show_progress", Prompt: "show_progress", Type: FieldBool, Required: false},
			},
		},
		{
			Action:       "optimized",
			Method:       "POST",
			PathTemplate: "/judge/batch/optimized",
			Fields: []Field{
				{Name: "language", Aliases: []string{"lang"}, Prompt: "language", Type: FieldString, Required: true},
				{Name: "user_code", Aliases: []string{"code"}, Prompt: "user_code", Type: FieldString, Required: true},
				{Name: "source_file", Aliases: []string{"file"}, Prompt: "source_file", Type: FieldFile, Required: false},
				{Name: "configs", Prompt: "configs (JSON array)", Type: FieldJSON, Required: true},
				{Name: "configs_file", Prompt: "configs_file", Type: FieldFile, Required: false},
				{Name: "standard", Aliases: []string{"std"}, Prompt: "standard", Type: FieldString, Required: false},
				{Name: "flags", Prompt: "compiler flags", Type: FieldString, Required: false},
				{Name: "compile_timeout", Prompt: "compile_timeout (s)", Type: FieldInt, Required: false},
				{Name: "execution_timeout", Prompt: "execution_timeout (s)", Type: FieldInt, Required: false},
				{Name: "memory_limit", Prompt: "memory_limit", Type: FieldString, Required: false},
				{Name: "cpu_limit", Prompt: "cpu_limit", Type: FieldFloat, Required: false},
				{Name: "show_progress", Prompt: "show_progress", Type: FieldBool, Required: false},
			},
		},
		{
			Action:       "status",
			Method:       "GET",
			PathTemplate: "/judge/submissions/:id",
			Fields: []Field{
				{Name: "id", Aliases: []string{"submission_id"}, Prompt: "submission_id", Type: FieldString, Required: true},
			},
		},
		{
			Action:       "languages",
			Method:       "GET",
			PathTemplate: "/judge/languages",
		},
		{
			Action:       "limits",
			Method:       "GET",
			PathTemplate: "/judge/limits",
		},
		{
			Action:       "health",
			Method:       "GET",
			PathTemplate: "/judge/status",
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		result[cmd.Action] = cmd
	}
	return result
}

func submitFields() []Field {
	return []Field{
		{Name: "language", Aliases: []string{"lang"}, Prompt: "language", Type: FieldString, Required: true},
		{Name: "user_code", Aliases: []string{"code"}, Prompt: "user_code", Type: FieldString, Required: true},
		{Name: "source_file", Aliases: []string{"file"}, Prompt: "source_file", Type: FieldFile, Required: false},
		{Name: "solve_params", Aliases: []string{"params"}, Prompt: "solve_params (JSON array)", Type: FieldJSON, Required: true},
		{Name: "expected", Prompt: "expected (JSON object)", Type: FieldJSON, Required: true},
		{Name: "function_type", Aliases: []string{"type"}, Prompt: "function_type", Type: FieldString, Required: true},
		{Name: "standard", Aliases: []string{"std"}, Prompt: "standard", Type: FieldString, Required: false},
		{Name: "flags", Prompt: "compiler flags", Type: FieldString, Required: false},
		{Name: "compile_timeout", Prompt: "compile_timeout (s)", Type: FieldInt, Required: false},
		{Name: "execution_timeout", Prompt: "execution_timeout (s)", Type: FieldInt, Required: false},
		{Name: "memory_limit", Prompt: "memory_limit", Type: FieldString, Required: false},
		{Name: "cpu_limit", Prompt: "cpu_limit", Type: FieldFloat, Required: false},
		{Name: "show_logs", Prompt: "show_logs", Type: FieldBool, Required: false},
	}
}

// BuildRequest creates HTTP request spec based on command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}

	var body []byte
	if cmd.Method != "GET" && cmd.Method != "DELETE" {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method: cmd.Method,
		Path:   path,
		Body:   body,
	}, nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	if strings.Contains(path, ":id") {
		value := params.Get("id")
		if value == "" {
			return "", fmt.Errorf("missing path parameter: id")
		}
		path = strings.ReplaceAll(path, ":id", value)
	}
	return path, nil
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	switch cmd.Action {
	case "submit", "submit-async":
		return buildSubmitPayload(params)
	case "batch":
		return buildBatchPayload(params)
	case "optimized":
		return buildOptimizedPayload(params)
	}
	return nil, nil
}

func buildSubmitPayload(params Params) (interface{}, error) {
	userCode, err := sourceCode(params)
	if err != nil {
		return nil, err
	}
	solveParams, err := ParseJSON(params.Get("solve_params"))
	if err != nil {
		return nil, fmt.Errorf("invalid solve_params: %w", err)
	}
	expected, err := ParseJSON(params.Get("expected"))
	if err != nil {
		return nil, fmt.Errorf("invalid expected: %w", err)
	}

	payload := map[string]interface{}{
		"language":      params.Get("language"),
		"user_code":     userCode,
		"solve_params":  solveParams,
		"expected":      expected,
		"function_type": params.Get("function_type"),
	}
	if settings := compilerSettings(params); settings != nil {
		payload["compiler_settings"] = settings
	}
	limits, err := resourceLimits(params)
	if err != nil {
		return nil, err
	}
	if limits != nil {
		payload["resource_limits"] = limits
	}
	if params.Get("show_logs") != "" {
		showLogs, err := ParseBool(params.Get("show_logs"))
		if err != nil {
			return nil, fmt.Errorf("invalid show_logs: %w", err)
		}
		payload["show_logs"] = showLogs
	}
	return payload, nil
}

func buildBatchPayload(params Params) (interface{}, error) {
	tests, err := jsonOrFile(params, "tests", "tests_file")
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"tests": tests,
	}
	if params.Get("show_progress") != "" {
		showProgress, err := ParseBool(params.Get("show_progress"))
		if err != nil {
			return nil, fmt.Errorf("invalid show_progress: %w", err)
		}
		payload["show_progress"] = showProgress
	}
	return payload, nil
}

func buildOptimizedPayload(params Params) (interface{}, error) {
	userCode, err := sourceCode(params)
	if err != nil {
		return nil, err
	}
	configs, err := jsonOrFile(params, "configs", "configs_file")
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"language":  params.Get("language"),
		"user_code": userCode,
		"configs":   configs,
	}
	if settings := compilerSettings(params); settings != nil {
		payload["compiler_settings"] = settings
	}
	limits, err := resourceLimits(params)
	if err != nil {
		return nil, err
	}
	if limits != nil {
		payload["resource_limits"] = limits
	}
	if params.Get("show_progress") != "" {
		showProgress, err := ParseBool(params.Get("show_progress"))
		if err != nil {
			return nil, fmt.Errorf("invalid show_progress: %w", err)
		}
		payload["show_progress"] = showProgress
	}
	return payload, nil
}

func sourceCode(params Params) (string, error) {
	code := params.Get("user_code")
	if (code == "" || code == "_file_") && params.Get("source_file") != "" {
		data, err := ReadFile(params.Get("source_file"))
		if err != nil {
			return "", err
		}
		code = data
	}
	if code == "" {
		return "", fmt.Errorf("user_code is required")
	}
	return code, nil
}

func compilerSettings(params Params) map[string]string {
	standard := params.Get("standard")
	flags := params.Get("flags")
	if standard == "" && flags == "" {
		return nil
	}
	settings := map[string]string{}
	if standard != "" {
		settings["standard"] = standard
	}
	if flags != "" {
		settings["flags"] = flags
	}
	return settings
}

func resourceLimits(params Params) (map[string]interface{}, error) {
	limits := map[string]interface{}{}
	if v := params.Get("compile_timeout"); v != "" {
		n, err := ParseInt(v)
		if err != nil {
			return nil, fmt.Errorf("invalid compile_timeout: %w", err)
		}
		limits["compile_timeout"] = n
	}
	if v := params.Get("execution_timeout"); v != "" {
		n, err := ParseInt(v)
		if err != nil {
			return nil, fmt.Errorf("invalid execution_timeout: %w", err)
		}
		limits["execution_timeout"] = n
	}
	if v := params.Get("memory_limit"); v != "" {
		limits["memory_limit"] = v
	}
	if v := params.Get("cpu_limit"); v != "" {
		f, err := ParseFloat(v)
		if err != nil {
			return nil, fmt.Errorf("invalid cpu_limit: %w", err)
		}
		limits["cpu_limit"] = f
	}
	if len(limits) == 0 {
		return nil, nil
	}
	return limits, nil
}

func jsonOrFile(params Params, key, fileKey string) (json.RawMessage, error) {
	value := params.Get(key)
	if (value == "" || value == "_file_") && params.Get(fileKey) != "" {
		data, err := ReadFile(params.Get(fileKey))
		if err != nil {
			return nil, err
		}
		value = data
	}
	if value == "" {
		return nil, fmt.Errorf("%s is required", key)
	}
	raw, err := ParseJSON(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return raw, nil
}
