package lang

import (
	"testing"

	pkgerrors "judgemicro/pkg/errors"
)

func TestLookup(t *testing.T) {
	reg := NewRegistry()

	c, err := reg.Lookup("c")
	if err != nil {
		t.Fatalf("lookup c failed: %v", err)
	}
	if c.SourceFile != "user.c" || !c.Compiled || c.DefaultStandard != "c11" || c.StandardKey != "c_standard" {
		t.Fatalf("unexpected c definition %+v", c)
	}

	cpp, err := reg.Lookup("  CPP ")
	if err != nil {
		t.Fatalf("expected lookup to trim and lowercase, got %v", err)
	}
	if cpp.Name != "cpp" || cpp.DefaultStandard != "cpp17" || cpp.StandardKey != "cpp_standard" {
		t.Fatalf("unexpected cpp definition %+v", cpp)
	}

	py, err := reg.Lookup("python")
	if err != nil {
		t.Fatalf("lookup python failed: %v", err)
	}
	if py.Compiled || len(py.Standards) != 0 || py.SourceFile != "user.py" {
		t.Fatalf("unexpected python definition %+v", py)
	}

	if _, err := reg.Lookup("rust"); !pkgerrors.Is(err, pkgerrors.LanguageNotSupported) {
		t.Fatalf("expected LanguageNotSupported, got %v", err)
	}
}

func TestLookupVersionedPython(t *testing.T) {
	reg := NewRegistry()

	l, err := reg.Lookup("python-3.11")
	if err != nil {
		t.Fatalf("lookup python-3.11 failed: %v", err)
	}
	if l.Name != "python-3.11" {
		t.Fatalf("expected variant to keep its requested name, got %q", l.Name)
	}
	if l.Image != "tsukisama9292/judger-runner:python_3.11" {
		t.Fatalf("unexpected image %q", l.Image)
	}
	if l.Compiled {
		t.Fatalf("python variant must stay interpreted")
	}

	// A bare "python-" names no version.
	if _, err := reg.Lookup("python-"); !pkgerrors.Is(err, pkgerrors.LanguageNotSupported) {
		t.Fatalf("expected LanguageNotSupported, got %v", err)
	}
}

func TestSetImage(t *testing.T) {
	reg := NewRegistry()

	if err := reg.SetImage("python", "registry.local/runner:python"); err != nil {
		t.Fatalf("set image failed: %v", err)
	}
	base, _ := reg.Lookup("python")
	if base.Image != "registry.local/runner:python" {
		t.Fatalf("override not applied: %q", base.Image)
	}
	variant, _ := reg.Lookup("python-3.12")
	if variant.Image != "registry.local/runner:python_3.12" {
		t.Fatalf("expected versioned variants to follow the override, got %q", variant.Image)
	}

	if err := reg.SetImage("rust", "x"); !pkgerrors.Is(err, pkgerrors.LanguageNotSupported) {
		t.Fatalf("expected LanguageNotSupported, got %v", err)
	}
}

func TestNames(t *testing.T) {
	names := NewRegistry().Names()
	want := []string{"c", "cpp", "python"}
	if len(names) != len(want) {
		t.Fatalf("unexpected names %v", names)
	}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("expected sorted names %v, got %v", want, names)
		}
	}
}

func TestSupports(t *testing.T) {
	reg := NewRegistry()
	c, _ := reg.Lookup("c")
	if !c.Supports("c99") || c.Supports("cpp17") {
		t.Fatalf("unexpected standard support for c")
	}
	py, _ := reg.Lookup("python")
	if py.Supports("c11") {
		t.Fatalf("python takes no standard")
	}
}
