package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Profile describes how to render judge-micro config variants from one
// base file. Each variant deep-merges its overrides onto the base.
type Profile struct {
	OutputDir string                    `yaml:"outputDir"`
	Base      string                    `yaml:"base"`
	Limits    LimitsProfile             `yaml:"limits"`
	Variants  map[string]VariantProfile `yaml:"variants"`
}

// LimitsProfile pins execution limits across every rendered variant so
// staging and production cannot drift apart on them.
type LimitsProfile struct {
	CompileTimeout   int     `yaml:"compileTimeout"`
	ExecutionTimeout int     `yaml:"executionTimeout"`
	MemoryLimit      string  `yaml:"memoryLimit"`
	CPULimit         float64 `yaml:"cpuLimit"`
}

type VariantProfile struct {
	Output    string                 `yaml:"output"`
	Overrides map[string]interface{} `yaml:"overrides"`
}

func main() {
	profilePath := flag.String("profile", "configs/judge-micro-profile.yaml", "Path to config profile")
	outputDir := flag.String("output-dir", "", "Override output directory")
	flag.Parse()

	profilePathAbs, err := filepath.Abs(*profilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve profile path failed: %v\n", err)
		os.Exit(1)
	}

	profile, err := loadProfile(profilePathAbs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load profile failed: %v\n", err)
		os.Exit(1)
	}

	if *outputDir != "" {
		profile.OutputDir = *outputDir
	}
	if profile.OutputDir == "" {
		fmt.Fprintln(os.Stderr, "output directory is required")
		os.Exit(1)
	}
	profileDir := filepath.Dir(profilePathAbs)
	if !filepath.IsAbs(profile.OutputDir) {
		profile.OutputDir = filepath.Join(profileDir, profile.OutputDir)
	}
	if !filepath.IsAbs(profile.Base) {
		profile.Base = filepath.Join(profileDir, profile.Base)
	}

	if err := os.MkdirAll(profile.OutputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output directory failed: %v\n", err)
		os.Exit(1)
	}

	variantNames := make([]string, 0, len(profile.Variants))
	for name := range profile.Variants {
		variantNames = append(variantNames, name)
	}
	sort.Strings(variantNames)

	for _, name := range variantNames {
		variant := profile.Variants[name]

		config, err := loadYAML(profile.Base)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load base config failed: %v\n", err)
			os.Exit(1)
		}
		config = normalizeValue(config)

		if len(variant.Overrides) > 0 {
			override := normalizeValue(variant.Overrides)
			merged, err := mergeMap(config, override)
			if err != nil {
				fmt.Fprintf(os.Stderr, "merge overrides for %q failed: %v\n", name, err)
				os.Exit(1)
			}
			config = merged
		}
		config, err = applySharedLimits(profile, config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "apply shared limits for %q failed: %v\n", name, err)
			os.Exit(1)
		}

		outputPath, err := resolveOutputPath(profile.OutputDir, name, variant)
		if err != nil {
			fmt.Fprintf(os.Stderr, "resolve output path for %q failed: %v\n", name, err)
			os.Exit(1)
		}

		if err := writeYAML(outputPath, config); err != nil {
			fmt.Fprintf(os.Stderr, "write config for %q failed: %v\n", name, err)
			os.Exit(1)
		}
	}
}

func loadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile failed: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile failed: %w", err)
	}
	if profile.Base == "" {
		return nil, errors.New("profile has no base config")
	}
	if len(profile.Variants) == 0 {
		return nil, errors.New("profile has no variants")
	}
	return &profile, nil
}

func loadYAML(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read yaml failed: %w", err)
	}

	var value interface{}
	if err := yaml.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("parse yaml failed: %w", err)
	}
	return value, nil
}

func writeYAML(path string, value interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir failed: %w", err)
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal yaml failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write yaml failed: %w", err)
	}
	return nil
}

func resolveOutputPath(outputDir, name string, variant VariantProfile) (string, error) {
	output := variant.Output
	if output == "" {
		output = fmt.Sprintf("judge-micro.%s.yaml", name)
	}
	if filepath.IsAbs(output) {
		return output, nil
	}
	return filepath.Join(outputDir, output), nil
}

func normalizeValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			out[k] = normalizeValue(v)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprintf("%v", k)
			}
			out[key] = normalizeValue(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(typed))
		for _, item := range typed {
			out = append(out, normalizeValue(item))
		}
		return out
	default:
		return value
	}
}

func mergeMap(base interface{}, override interface{}) (interface{}, error) {
	baseMap, ok := base.(map[string]interface{})
	if !ok {
		return nil, errors.New("base config is not a map")
	}
	overrideMap, ok := override.(map[string]interface{})
	if !ok {
		return nil, errors.New("override config is not a map")
	}

	merged := make(map[string]interface{}, len(baseMap))
	for k, v := range baseMap {
		merged[k] = v
	}

	for key, overrideValue := range overrideMap {
		baseValue, exists := merged[key]
		if !exists {
			merged[key] = overrideValue
			continue
		}

		baseChild, baseIsMap := baseValue.(map[string]interface{})
		overrideChild, overrideIsMap := overrideValue.(map[string]interface{})
		if baseIsMap && overrideIsMap {
			combined, err := mergeMap(baseChild, overrideChild)
			if err != nil {
				return nil, err
			}
			merged[key] = combined
			continue
		}
		merged[key] = overrideValue
	}
	return merged, nil
}

func applySharedLimits(profile *Profile, config interface{}) (interface{}, error) {
	if profile == nil {
		return config, nil
	}
	l := profile.Limits
	if l.CompileTimeout == 0 && l.ExecutionTimeout == 0 && l.MemoryLimit == "" && l.CPULimit == 0 {
		return config, nil
	}
	root, ok := config.(map[string]interface{})
	if !ok {
		return nil, errors.New("variant config is not a map")
	}
	eng, ok := root["engine"].(map[string]interface{})
	if !ok {
		eng = map[string]interface{}{}
		root["engine"] = eng
	}
	if l.CompileTimeout != 0 {
		eng["compileTimeout"] = l.CompileTimeout
	}
	if l.ExecutionTimeout != 0 {
		eng["executionTimeout"] = l.ExecutionTimeout
	}
	if l.MemoryLimit != "" {
		eng["memoryLimit"] = l.MemoryLimit
	}
	if l.CPULimit != 0 {
		eng["cpuLimit"] = l.CPULimit
	}
	return root, nil
}
