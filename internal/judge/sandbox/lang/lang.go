// Package lang maps submission languages to runner images and file names.
package lang

import (
	"fmt"
	"sort"
	"strings"

	"judgemicro/pkg/errors"
)

// Language describes one supported submission language and its runner
// image contract.
type Language struct {
	// Name is the canonical language key, e.g. "c", "cpp", "python".
	Name string
	// Image is the runner image staged for this language.
	Image string
	// SourceFile is the file name the runner expects under /app.
	SourceFile string
	// Compiled reports whether the runner needs a build step.
	Compiled bool
	// Standards lists accepted language standards, empty when the
	// runner takes no standard.
	Standards []string
	// DefaultStandard is applied when the submission names none.
	DefaultStandard string
	// StandardKey is the config.json key carrying the standard.
	StandardKey string
}

// Supports reports whether std is an accepted standard for the language.
func (l Language) Supports(std string) bool {
	for _, s := range l.Standards {
		if s == std {
			return true
		}
	}
	return false
}

// CStandards and CppStandards are the standards the runner images accept.
var (
	CStandards   = []string{"c89", "c99", "c11", "c17", "c23"}
	CppStandards = []string{"cpp98", "cpp03", "cpp11", "cpp14", "cpp17", "cpp20", "cpp23"}
)

// Registry resolves language names to Language definitions. Image
// identities are configurable so deployments can pin their own runner
// builds.
type Registry struct {
	languages map[string]Language
	// pythonImage backs the versioned python-<version> variants.
	pythonImage string
}

// NewRegistry returns a registry with the default runner images.
func NewRegistry() *Registry {
	r := &Registry{
		languages:   make(map[string]Language),
		pythonImage: "tsukisama9292/judger-runner:python",
	}
	r.register(Language{
		Name:            "c",
		Image:           "tsukisama9292/judger-runner:c",
		SourceFile:      "user.c",
		Compiled:        true,
		Standards:       CStandards,
		DefaultStandard: "c11",
		StandardKey:     "c_standard",
	})
	r.register(Language{
		Name:            "cpp",
		Image:           "tsukisama9292/judger-runner:c_plus_plus",
		SourceFile:      "user.cpp",
		Compiled:        true,
		Standards:       CppStandards,
		DefaultStandard: "cpp17",
		StandardKey:     "cpp_standard",
	})
	r.register(Language{
		Name:       "python",
		Image:      r.pythonImage,
		SourceFile: "user.py",
		Compiled:   false,
	})
	return r
}

func (r *Registry) register(l Language) {
	r.languages[l.Name] = l
}

// SetImage overrides the runner image for a registered language.
// Overriding "python" also rebases the versioned python variants.
func (r *Registry) SetImage(name, image string) error {
	l, ok := r.languages[name]
	if !ok {
		return errors.RejectError(errors.LanguageNotSupported, name)
	}
	l.Image = image
	r.languages[name] = l
	if name == "python" {
		r.pythonImage = image
	}
	return nil
}

// Lookup resolves a language name. Versioned python variants such as
// "python-3.11" resolve to the python runner with a version-tagged
// image derived from the python base image.
func (r *Registry) Lookup(name string) (Language, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if l, ok := r.languages[key]; ok {
		return l, nil
	}
	if version, ok := strings.CutPrefix(key, "python-"); ok && version != "" {
		base := r.languages["python"]
		base.Name = key
		base.Image = versionedPythonImage(r.pythonImage, version)
		return base, nil
	}
	return Language{}, errors.RejectError(errors.LanguageNotSupported, name)
}

// Names returns the registered canonical language names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.languages))
	for name := range r.languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// versionedPythonImage swaps the image tag for a version-specific one,
// following the runner repository's tag scheme (python, python_3.11).
func versionedPythonImage(base, version string) string {
	repo := base
	if i := strings.LastIndex(base, ":"); i >= 0 {
		repo = base[:i]
	}
	return fmt.Sprintf("%s:python_%s", repo, version)
}
