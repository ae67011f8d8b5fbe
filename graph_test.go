package computegraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gogpu/computegraph/backend"
	"github.com/gogpu/computegraph/shader"
)

// =============================================================================
// Mocks
// =============================================================================

// mockDI is a configurable data interface. Its source declares one
// implementation function per supported function.
type mockDI struct {
	DataInterfaceBase

	class   string
	exec    bool
	unified bool

	readback, preSubmit, postSubmit bool

	inputs  []shader.Function
	outputs []shader.Function

	path    string
	hash    string
	decls   []string
	perms   []string
	defines map[string]string
	params  []string

	providerErr error
	nilProvider bool
}

func (m *mockDI) ClassName() string                  { return m.class }
func (m *mockDI) SupportedInputs() []shader.Function  { return m.inputs }
func (m *mockDI) SupportedOutputs() []shader.Function { return m.outputs }
func (m *mockDI) ShaderVirtualPath() string           { return m.path }

func (m *mockDI) ShaderSource(scope shader.Scope) string {
	var b strings.Builder
	for _, f := range append(append([]shader.Function(nil), m.inputs...), m.outputs...) {
		fmt.Fprintf(&b, "fn %s() {}\n", scope.Name(f.Name))
	}
	return b.String()
}

func (m *mockDI) StructDeclarations(seen map[string]struct{}, out []string) []string {
	for _, d := range m.decls {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

func (m *mockDI) Defines(defs *shader.DefinitionSet) {
	for name, value := range m.defines {
		defs.Set(name, value)
	}
}

func (m *mockDI) Permutations(vec *shader.PermutationVector) {
	for _, p := range m.perms {
		vec.AddBool(p)
	}
}

func (m *mockDI) ShaderHash(key *shader.HashKey) { key.Append(m.hash) }

func (m *mockDI) ShaderParameters(_ string, b *ParameterBuilder) {
	for _, p := range m.params {
		b.AddStorage(p, "array<f32>", true)
	}
}

func (m *mockDI) IsExecutionInterface() bool      { return m.exec }
func (m *mockDI) CanSupportUnifiedDispatch() bool { return m.unified }
func (m *mockDI) RequiresReadback() bool          { return m.readback }
func (m *mockDI) RequiresPreSubmitCall() bool     { return m.preSubmit }
func (m *mockDI) RequiresPostSubmitCall() bool    { return m.postSubmit }

func (m *mockDI) CreateDataProvider() (DataProvider, error) {
	if m.providerErr != nil {
		return nil, m.providerErr
	}
	if m.nilProvider {
		return nil, nil
	}
	return &mockProvider{}, nil
}

type mockProvider struct {
	di          DataInterface
	obj         any
	in, out     uint64
	initialized int
}

func (p *mockProvider) Initialize(di DataInterface, obj any, in, out uint64) {
	p.di, p.obj, p.in, p.out = di, obj, in, out
	p.initialized++
}

// mockCompiler returns the expanded source as code. Entry points listed in
// fail fail to compile; a non-nil gate holds every compile until closed.
type mockCompiler struct {
	format string

	mu    sync.Mutex
	fail  map[string]error
	gate  chan struct{}
	calls atomic.Int64

	// ignoreCtx makes held compiles wait for the gate even when cancelled,
	// like naga.
	ignoreCtx bool
	running   atomic.Int64
}

func newMockCompiler(format string) *mockCompiler {
	return &mockCompiler{format: format, fail: make(map[string]error)}
}

func (m *mockCompiler) Format() string                     { return m.format }
func (m *mockCompiler) FeatureLevel() shader.FeatureLevel { return shader.FeatureLevelSM5 }
func (m *mockCompiler) Dialect() shader.Dialect           { return shader.WGSL }

func (m *mockCompiler) setFail(entry string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, entry)
		return
	}
	m.fail[entry] = err
}

func (m *mockCompiler) hold() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	return m.gate
}

func (m *mockCompiler) Compile(ctx context.Context, req *backend.Request) (*backend.Output, error) {
	m.calls.Add(1)
	m.running.Add(1)
	defer m.running.Add(-1)
	m.mu.Lock()
	gate, err := m.gate, m.fail[req.EntryPoint]
	m.mu.Unlock()

	switch {
	case gate != nil && m.ignoreCtx:
		<-gate
	case gate != nil:
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return &backend.Output{Diagnostics: []string{"error: " + err.Error()}}, err
	}
	src, err := req.Expand(m.Dialect())
	if err != nil {
		return nil, err
	}
	return &backend.Output{Code: []byte(src)}, nil
}

// recordQueue collects commands until run is called.
type recordQueue struct {
	mu  sync.Mutex
	fns []func()
}

func (q *recordQueue) Enqueue(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fns = append(q.fns, fn)
}

func (q *recordQueue) run() int {
	q.mu.Lock()
	fns := q.fns
	q.fns = nil
	q.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// =============================================================================
// Fixtures
// =============================================================================

var errMockCompile = errors.New("mock compile error")

func newTestGraph(t *testing.T, c *mockCompiler, opts ...Option) *Graph {
	t.Helper()
	base := []Option{
		WithCompiler(c),
		WithRuntimeFormat(c.format),
		WithProgramCache(backend.NewProgramCache(0)),
		WithWorkers(2),
		WithFatalHandler(func(kernel string, err error) {
			t.Errorf("unexpected fatal failure of %s: %v", kernel, err)
		}),
	}
	g := NewGraph("G", append(base, opts...)...)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func execDI() *mockDI {
	return &mockDI{
		class:   "Exec",
		exec:    true,
		unified: true,
		hash:    "exec-v1",
		inputs:  []shader.Function{{Name: "ReadNumThreads", Return: "u32"}},
		params:  []string{"Threads"},
	}
}

func outBufDI() *mockDI {
	return &mockDI{
		class:   "OutBuf",
		hash:    "outbuf-v1",
		outputs: []shader.Function{{Name: "Write", Params: []shader.Param{{Type: "u32"}, {Type: "f32"}}}},
		decls:   []string{"struct OutValue { v: f32, }"},
		params:  []string{"Values"},
	}
}

func mainSource() *KernelSource {
	return &KernelSource{
		EntryPoint:      "CSMain",
		GroupSize:       [3]uint32{64, 1, 1},
		Body:            "@compute @workgroup_size(64) fn CSMain() { WriteOut(ReadNumThreads(), 1.0); }\n",
		ExternalInputs:  []shader.Function{{Name: "ReadNumThreads", Return: "u32"}},
		ExternalOutputs: []shader.Function{{Name: "WriteOut", Params: []shader.Param{{Type: "u32"}, {Type: "f32"}}}},
	}
}

// scenarioGraph is kernel Main bound to Exec by an execution edge and to
// OutBuf by output edge 0.
func scenarioGraph(t *testing.T, c *mockCompiler, opts ...Option) (g *Graph, exec, out *mockDI) {
	t.Helper()
	g = newTestGraph(t, c, opts...)
	exec, out = execDI(), outBufDI()
	b := g.AddBinding("Mesh", nil)
	ei := g.AddDataInterface(exec, b)
	oi := g.AddDataInterface(out, b)
	k := g.AddKernel("Main", mainSource())
	g.Connect(Edge{DataInterfaceIndex: ei, KernelIndex: k, KernelInput: true})
	g.Connect(Edge{DataInterfaceIndex: oi, KernelIndex: k})
	return g, exec, out
}

// =============================================================================
// Graph
// =============================================================================

func TestNewGraphDefaults(t *testing.T) {
	g := NewGraph("Defaults")
	defer g.Close()

	if g.Name != "Defaults" {
		t.Errorf("Name = %q", g.Name)
	}
	if g.ID().String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("ID is zero")
	}
	if g.opts.runtimeFormat != DefaultRuntimeFormat {
		t.Errorf("runtime format = %q, want %q", g.opts.runtimeFormat, DefaultRuntimeFormat)
	}
	if g.files() != shader.Builtin {
		t.Error("files should default to shader.Builtin")
	}
	if !g.ownPool || g.ownQueue == nil {
		t.Error("graph should own its pool and queue")
	}
	if g.RenderProxy() != nil {
		t.Error("proxy published before any update")
	}
}

func TestWithName(t *testing.T) {
	g := NewGraph("Asset", WithName("Renamed"))
	defer g.Close()
	if g.Name != "Renamed" {
		t.Errorf("Name = %q, want Renamed", g.Name)
	}
}

func TestNewGraphSharedPool(t *testing.T) {
	pool := NewCompilePool(2)
	defer pool.Close()
	q := &recordQueue{}

	g := NewGraph("Shared", WithPool(pool), WithRenderQueue(q))
	if g.ownPool || g.ownQueue != nil {
		t.Error("graph should not own a shared pool or queue")
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if pool.Workers() != 2 {
		t.Errorf("Workers() = %d, want 2", pool.Workers())
	}
}

func TestBuilderIndices(t *testing.T) {
	g := newTestGraph(t, newMockCompiler("mock"))
	if b := g.AddBinding("A", nil); b != 0 {
		t.Errorf("AddBinding = %d, want 0", b)
	}
	if b := g.AddBinding("B", nil); b != 1 {
		t.Errorf("AddBinding = %d, want 1", b)
	}
	if i := g.AddDataInterface(nil, 1); i != 0 {
		t.Errorf("AddDataInterface = %d, want 0", i)
	}
	if len(g.DataInterfaceToBinding) != 1 || g.DataInterfaceToBinding[0] != 1 {
		t.Errorf("DataInterfaceToBinding = %v", g.DataInterfaceToBinding)
	}
	if k := g.AddKernel("K", nil); k != 0 {
		t.Errorf("AddKernel = %d, want 0", k)
	}
}
