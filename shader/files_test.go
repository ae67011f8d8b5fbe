package shader

import (
	"errors"
	"strings"
	"testing"
)

// ===== Files =====

func TestFilesRegisterAndFallback(t *testing.T) {
	parent := NewFiles()
	parent.MustRegister("/p.wgsl", "parent")
	f := NewFiles(parent)
	f.MustRegister("/c.wgsl", "child")

	if src, ok := f.Source("/p.wgsl"); !ok || src != "parent" {
		t.Errorf("Source(/p.wgsl) = %q, %v", src, ok)
	}
	if _, ok := parent.Source("/c.wgsl"); ok {
		t.Error("parent must not see child files")
	}
	if err := f.Register("relative.wgsl", ""); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Register(relative) err = %v, want ErrInvalidPath", err)
	}
	if got := f.Paths(); len(got) != 1 || got[0] != "/c.wgsl" {
		t.Errorf("Paths() = %v", got)
	}
}

func TestFileHashFollowsIncludes(t *testing.T) {
	f := NewFiles()
	f.MustRegister("/lib.wgsl", "fn lib() {}\n")
	f.MustRegister("/main.wgsl", "#include \"/lib.wgsl\"\nfn main() {}\n")

	before, err := f.FileHash("/main.wgsl", "spirv")
	if err != nil {
		t.Fatalf("FileHash: %v", err)
	}
	again, _ := f.FileHash("/main.wgsl", "spirv")
	if before != again {
		t.Error("FileHash not deterministic")
	}
	other, _ := f.FileHash("/main.wgsl", "wgsl")
	if other == before {
		t.Error("FileHash should depend on format")
	}

	f.MustRegister("/lib.wgsl", "fn lib() { let x = 1; }\n")
	after, _ := f.FileHash("/main.wgsl", "spirv")
	if after == before {
		t.Error("editing an included file must change the includer's hash")
	}
}

func TestFileHashErrors(t *testing.T) {
	f := NewFiles()
	if _, err := f.FileHash("/missing.wgsl", "spirv"); !errors.Is(err, ErrIncludeNotFound) {
		t.Errorf("missing err = %v, want ErrIncludeNotFound", err)
	}

	f.MustRegister("/a.wgsl", "#include \"/b.wgsl\"\n")
	f.MustRegister("/b.wgsl", "#include \"/a.wgsl\"\n")
	if _, err := f.FileHash("/a.wgsl", "spirv"); !errors.Is(err, ErrIncludeCycle) {
		t.Errorf("cycle err = %v, want ErrIncludeCycle", err)
	}
}

func TestBuiltinWrapperHash(t *testing.T) {
	src, ok := Builtin.Source(KernelWrapperPath)
	if !ok {
		t.Fatal("kernel wrapper not registered")
	}
	if !strings.Contains(src, GeneratedKernelPath) {
		t.Error("kernel wrapper must include the generated kernel path")
	}
	h, err := Builtin.FileHash(KernelWrapperPath, "spirv")
	if err != nil {
		t.Fatalf("FileHash(wrapper): %v", err)
	}
	if h.IsZero() {
		t.Error("wrapper hash is zero")
	}
}

// ===== Preprocessor =====

func TestParseIncludes(t *testing.T) {
	src := "#include \"/a.wgsl\"\n  #include </b.wgsl>\n// #include \"/c.wgsl\"\n#include nothing\n"
	got := ParseIncludes(src)
	if len(got) != 2 || got[0] != "/a.wgsl" || got[1] != "/b.wgsl" {
		t.Errorf("ParseIncludes = %v", got)
	}
}

func TestExpand(t *testing.T) {
	files := map[string]string{
		"/common.wgsl": "const ONE = 1u;\n",
		"/a.wgsl":      "#include \"/common.wgsl\"\nfn a() {}\n",
		GeneratedPath("DI0_Buffer", "/buffer.wgsl"): "fn b() {}",
	}
	resolve := func(p string) (string, bool) { s, ok := files[p]; return s, ok }

	src := "#include \"/a.wgsl\"\n#include \"/common.wgsl\"\n#include \"" +
		GeneratedPath("DI0_Buffer", "/buffer.wgsl") + "\"\nfn main() {}\n"
	out, err := Expand(src, resolve)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if n := strings.Count(out, "const ONE"); n != 1 {
		t.Errorf("common included %d times, want 1", n)
	}
	if !strings.Contains(out, "// begin include \"/buffer.wgsl\"") {
		t.Errorf("generated prefix not stripped in marker:\n%s", out)
	}
	if strings.Index(out, "fn a()") > strings.Index(out, "fn main()") {
		t.Error("included text must precede the includer's later lines")
	}
}

func TestExpandErrors(t *testing.T) {
	files := map[string]string{
		"/x.wgsl": "#include \"/y.wgsl\"\n",
		"/y.wgsl": "#include \"/x.wgsl\"\n",
	}
	resolve := func(p string) (string, bool) { s, ok := files[p]; return s, ok }

	if _, err := Expand("#include \"/x.wgsl\"\n", resolve); !errors.Is(err, ErrIncludeCycle) {
		t.Errorf("cycle err = %v", err)
	}
	if _, err := Expand("#include \"/none.wgsl\"\n", resolve); !errors.Is(err, ErrIncludeNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestStripGeneratedPrefix(t *testing.T) {
	p := GeneratedPath("DI3_Buffer", "/ComputeGraph/DataInterface/Buffer.wgsl")
	got, ok := StripGeneratedPrefix(p)
	if !ok || got != "/ComputeGraph/DataInterface/Buffer.wgsl" {
		t.Errorf("StripGeneratedPrefix = %q, %v", got, ok)
	}
	if _, ok := StripGeneratedPrefix("/other.wgsl"); ok {
		t.Error("non-generated path should not be stripped")
	}
	if !IsGenerated(p) || IsGenerated("/other.wgsl") {
		t.Error("IsGenerated mismatch")
	}
}

func TestFeatureLevel(t *testing.T) {
	for i := range NumFeatureLevels {
		l := FeatureLevel(i)
		back, err := ParseFeatureLevel(l.String())
		if err != nil || back != l {
			t.Errorf("ParseFeatureLevel(%q) = %v, %v", l.String(), back, err)
		}
	}
	if FeatureLevel(9).Valid() {
		t.Error("FeatureLevel(9) should be invalid")
	}
}

func TestGatherSources(t *testing.T) {
	base := &Source{VirtualPath: "/base.wgsl"}
	mid := &Source{VirtualPath: "/mid.wgsl", Dependencies: []*Source{base}}
	top := &Source{VirtualPath: "/top.wgsl", Dependencies: []*Source{mid, base}}

	got := GatherSources([]*Source{top, nil, mid})
	want := []string{"/base.wgsl", "/mid.wgsl", "/top.wgsl"}
	if len(got) != len(want) {
		t.Fatalf("GatherSources returned %d sources, want %d", len(got), len(want))
	}
	for i, s := range got {
		if s.VirtualPath != want[i] {
			t.Errorf("source %d = %s, want %s", i, s.VirtualPath, want[i])
		}
	}
}
