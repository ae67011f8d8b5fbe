package backend

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/computegraph/shader"
)

// mockCompiler records requests and returns the expanded source as code.
type mockCompiler struct {
	format string
	fail   map[int]bool

	mu    sync.Mutex
	reqs  []Request
	calls atomic.Int64
}

func (m *mockCompiler) Format() string                     { return m.format }
func (m *mockCompiler) FeatureLevel() shader.FeatureLevel { return shader.FeatureLevelSM5 }
func (m *mockCompiler) Dialect() shader.Dialect           { return shader.WGSL }

func (m *mockCompiler) Compile(_ context.Context, req *Request) (*Output, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.reqs = append(m.reqs, *req)
	m.mu.Unlock()
	if m.fail[req.PermutationID] {
		return &Output{Diagnostics: []string{"error: bad"}}, errors.New("mock failure")
	}
	src, err := req.Expand(m.Dialect())
	if err != nil {
		return nil, err
	}
	return &Output{Code: []byte(src)}, nil
}

// resetRegistry clears all registered compilers for test isolation.
func resetRegistry() {
	registryMu.Lock()
	factories = make(map[string]Factory)
	registryMu.Unlock()
}

// =============================================================================
// Registry Tests
// =============================================================================

func TestRegistry(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	Register("mock", func() Compiler { return &mockCompiler{format: "mock"} })
	if !IsRegistered("mock") {
		t.Fatal("mock should be registered")
	}
	c, err := New("mock")
	if err != nil || c.Format() != "mock" {
		t.Fatalf("New(mock) = %v, %v", c, err)
	}
	if got := Formats(); len(got) != 1 || got[0] != "mock" {
		t.Errorf("Formats() = %v", got)
	}

	if _, err := New("dxil"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("New(dxil) err = %v, want ErrUnknownFormat", err)
	} else if !strings.Contains(err.Error(), "forgotten import") {
		t.Errorf("error should hint at a forgotten import: %v", err)
	}

	Unregister("mock")
	if IsRegistered("mock") {
		t.Error("mock still registered after Unregister")
	}
}

func TestRegistryPanics(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	expectPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		fn()
	}
	expectPanic("nil factory", func() { Register("x", nil) })
	Register("x", func() Compiler { return &mockCompiler{format: "x"} })
	expectPanic("duplicate", func() { Register("x", func() Compiler { return nil }) })
	expectPanic("MustNew unknown", func() { MustNew("nope") })
}

// =============================================================================
// Request Tests
// =============================================================================

func TestRequestExpand(t *testing.T) {
	files := shader.NewFiles(shader.Builtin)
	files.MustRegister("/lib/common.wgsl", "const COMMON = 1u;\n")

	req := Request{
		FriendlyName: "G/main",
		Source:       "#include \"/lib/common.wgsl\"\n@compute @workgroup_size(64) fn main() {}\n",
		Includes:     map[string]string{"/gen/extra.wgsl": "fn extra() {}\n"},
		Files:        files,
		Definitions:  []shader.Define{{Name: "MODE", Value: "2"}},
		GroupSize:    [3]uint32{64, 1, 0},
	}
	src, err := req.Expand(shader.WGSL)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	for _, want := range []string{
		"const MODE = 2;",
		"const THREADGROUP_SIZE_X = 64;",
		"const THREADGROUP_SIZE_Z = 1;",
		"const COMMON = 1u;",
		"fn main()",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("expanded source missing %q:\n%s", want, src)
		}
	}
	if strings.Index(src, "const MODE") > strings.Index(src, "fn main()") {
		t.Error("definitions must precede the kernel")
	}

	req.Source = "#include \"/missing.wgsl\"\n"
	if _, err := req.Expand(shader.WGSL); !errors.Is(err, shader.ErrIncludeNotFound) {
		t.Errorf("missing include err = %v", err)
	}
}

// =============================================================================
// CompileProgram Tests
// =============================================================================

func TestCompileProgramAllPermutations(t *testing.T) {
	m := &mockCompiler{format: "mock"}
	vec := shader.NewPermutationVector()
	vec.AddBool("A")
	vec.AddOption("B", 3)

	base := Request{FriendlyName: "G/k", EntryPoint: "k", Source: "fn k() {}\n",
		Definitions: []shader.Define{{Name: "BASE", Value: "1"}}}
	prog, err := CompileProgram(context.Background(), m, base, "KEY", vec)
	if err != nil {
		t.Fatalf("CompileProgram: %v", err)
	}
	if len(prog.Variants) != 6 {
		t.Fatalf("variants = %d, want 6", len(prog.Variants))
	}
	if prog.HashKey != "KEY" || prog.Format != "mock" || prog.EntryPoint != "k" {
		t.Errorf("program = %+v", prog)
	}
	v, ok := prog.Variant(5)
	if !ok || !strings.Contains(string(v.Code), "const A = 1;") || !strings.Contains(string(v.Code), "const B = 2;") {
		t.Errorf("variant 5 code =\n%s", v.Code)
	}
	if _, ok := prog.Variant(6); ok {
		t.Error("Variant(6) should not exist")
	}
	if prog.CodeSize() == 0 {
		t.Error("CodeSize() = 0")
	}
	// Base definitions come first and are not mutated.
	if m.reqs[1].Definitions[0].Name != "BASE" || len(base.Definitions) != 1 {
		t.Error("base definitions not preserved")
	}
}

func TestCompileProgramFailure(t *testing.T) {
	m := &mockCompiler{format: "mock", fail: map[int]bool{1: true}}
	vec := shader.NewPermutationVector()
	vec.AddBool("A")

	_, err := CompileProgram(context.Background(), m, Request{FriendlyName: "G/k"}, "KEY", vec)
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CompileError", err)
	}
	if ce.PermutationID != 1 || len(ce.Diagnostics) != 1 {
		t.Errorf("CompileError = %+v", ce)
	}
}

func TestCompileProgramLimits(t *testing.T) {
	m := &mockCompiler{format: "mock"}
	vec := shader.NewPermutationVector()
	for _, n := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		vec.AddBool(n)
	}
	if _, err := CompileProgram(context.Background(), m, Request{}, "K", vec); !errors.Is(err, ErrTooManyPermutations) {
		t.Errorf("err = %v, want ErrTooManyPermutations", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := CompileProgram(ctx, m, Request{}, "K", nil); !errors.Is(err, ErrCancelled) {
		t.Errorf("cancelled err = %v, want ErrCancelled", err)
	}
	if m.calls.Load() != 0 {
		t.Errorf("compiler called %d times, want 0", m.calls.Load())
	}
}

// =============================================================================
// ProgramCache Tests
// =============================================================================

func TestProgramCacheHit(t *testing.T) {
	c := NewProgramCache(0)
	key := ProgramKey{Format: "mock", HashKey: "abc"}
	compile := func(context.Context) (*Program, error) { return &Program{HashKey: "abc"}, nil }

	p1, hit, err := c.GetOrCompile(context.Background(), key, compile)
	if err != nil || hit {
		t.Fatalf("first GetOrCompile = %v, hit=%v, err=%v", p1, hit, err)
	}
	p2, hit, _ := c.GetOrCompile(context.Background(), key, compile)
	if !hit || p1 != p2 {
		t.Error("second GetOrCompile should hit the cache")
	}
	if c.Compiles() != 1 || c.Len() != 1 {
		t.Errorf("Compiles() = %d, Len() = %d, want 1, 1", c.Compiles(), c.Len())
	}
	if _, ok := c.Lookup(ProgramKey{Format: "other", HashKey: "abc"}); ok {
		t.Error("format is part of the key")
	}
}

func TestProgramCacheCollapsesConcurrent(t *testing.T) {
	c := NewProgramCache(0)
	key := ProgramKey{Format: "mock", HashKey: "same"}
	release := make(chan struct{})
	compile := func(context.Context) (*Program, error) {
		<-release
		return &Program{}, nil
	}

	var wg sync.WaitGroup
	results := make([]*Program, 8)
	hits := make([]bool, len(results))
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], hits[i], _ = c.GetOrCompile(context.Background(), key, compile)
		}()
	}
	close(release)
	wg.Wait()

	compiled := 0
	for i, p := range results {
		if p == nil || p != results[0] {
			t.Errorf("result %d = %p, want shared %p", i, p, results[0])
		}
		if !hits[i] {
			compiled++
		}
	}
	if compiled != 1 {
		t.Errorf("callers reporting a compile = %d, want 1 (hits %v)", compiled, hits)
	}
	if c.Compiles() != 1 || c.Len() != 1 {
		t.Errorf("Compiles() = %d, Len() = %d, want 1, 1", c.Compiles(), c.Len())
	}
}

func TestProgramCacheCancelWaitsForCompile(t *testing.T) {
	c := NewProgramCache(0)
	key := ProgramKey{Format: "mock", HashKey: "stubborn"}
	started := make(chan struct{})
	release := make(chan struct{})
	var running atomic.Int32
	// The compile ignores its context.
	compile := func(context.Context) (*Program, error) {
		running.Add(1)
		defer running.Add(-1)
		close(started)
		<-release
		return &Program{}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompile(ctx, key, compile)
		done <- err
	}()
	<-started

	// A joiner with a cancelled context leaves without waiting.
	joinCtx, joinCancel := context.WithCancel(context.Background())
	joinCancel()
	if _, _, err := c.GetOrCompile(joinCtx, key, compile); !errors.Is(err, ErrCancelled) {
		t.Errorf("joiner err = %v, want ErrCancelled", err)
	}

	cancel()
	select {
	case err := <-done:
		t.Fatalf("initiator returned %v while its compile was running", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	if err := <-done; !errors.Is(err, ErrCancelled) {
		t.Errorf("initiator err = %v, want ErrCancelled", err)
	}
	if n := running.Load(); n != 0 {
		t.Errorf("compiles running after return = %d, want 0", n)
	}
	if _, ok := c.Lookup(key); !ok {
		t.Error("program finished before return should be cached")
	}
}

func TestProgramCacheErrorsNotCached(t *testing.T) {
	c := NewProgramCache(4)
	key := ProgramKey{Format: "mock", HashKey: "bad"}
	errBoom := errors.New("boom")

	_, _, err := c.GetOrCompile(context.Background(), key, func(context.Context) (*Program, error) { return nil, errBoom })
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want %v", err, errBoom)
	}
	if c.Len() != 0 {
		t.Error("failed compile must not be cached")
	}
}
