package computegraph

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gogpu/computegraph/backend"
	"github.com/gogpu/computegraph/internal/parallel"
	"github.com/gogpu/computegraph/shader"
)

// KernelFlags mark special roles of a kernel.
type KernelFlags uint32

const (
	// KernelFlagDefault marks the fallback kernel. It always compiles
	// synchronously and its failure is fatal.
	KernelFlagDefault KernelFlags = 1 << iota
)

// KernelSource is the code and interface of one kernel.
type KernelSource struct {
	// EntryPoint is the function the kernel's program starts at.
	EntryPoint string
	// GroupSize is the dispatch group size.
	GroupSize [3]uint32
	// Body is the kernel's own code. It calls its external functions by the
	// names declared in ExternalInputs and ExternalOutputs.
	Body string

	ExternalInputs  []shader.Function
	ExternalOutputs []shader.Function

	Definitions  shader.DefinitionSet
	Permutations shader.PermutationSet

	// AdditionalSources are included ahead of everything else.
	AdditionalSources []*shader.Source

	Flags KernelFlags
}

// IsDefault reports whether the kernel is the fallback kernel.
func (s *KernelSource) IsDefault() bool { return s.Flags&KernelFlagDefault != 0 }

// Kernel is one compute program of the graph. A nil Source leaves the slot
// empty; it is skipped by validation and compilation.
type Kernel struct {
	Name   string
	Source *KernelSource
}

// Edge connects function DataInterfaceBindingIndex of a data interface to
// external function KernelBindingIndex of a kernel.
type Edge struct {
	DataInterfaceIndex        int
	DataInterfaceBindingIndex int
	KernelIndex               int
	KernelBindingIndex        int

	// KernelInput selects the kernel's ExternalInputs and the interface's
	// SupportedInputs; otherwise both output lists are used.
	KernelInput bool

	// BindingFunctionNameOverride renames the generated shim.
	BindingFunctionNameOverride string
	// BindingFunctionNamespace scopes the generated shim.
	BindingFunctionNamespace string
}

// Binding is a named attachment point for an external object. Accepts
// checks the type of objects offered for it; nil accepts anything.
type Binding struct {
	Name    string
	Accepts func(obj any) bool
}

// Graph is a declarative graph of kernels and data interfaces. The exported
// fields are the definition and are edited on a single goroutine; edits take
// effect at the next UpdateResources. Use NewGraph to create one.
type Graph struct {
	Name           string
	Kernels        []*Kernel
	DataInterfaces []DataInterface
	Edges          []Edge
	Bindings       []Binding

	// DataInterfaceToBinding maps each data interface slot to its binding
	// group.
	DataInterfaceToBinding []int

	id   uuid.UUID
	opts options

	pool  *parallel.WorkerPool
	queue RenderQueue

	ownPool  bool
	ownQueue *parallel.SerialQueue

	mu         sync.Mutex
	closed     bool
	resources  []ResourceSet
	pending    map[int]struct{}
	generation uint64
	// publishGen is the generation of the published proxy.
	publishGen uint64
	idle       chan struct{}
	onCompiled func(kernelIndex int, result KernelCompileResult)
	compilers  map[string]backend.Compiler
	cook       map[string]*cookPlatform

	proxy atomic.Pointer[RenderProxy]
}

// NewGraph creates an empty graph.
func NewGraph(name string, opts ...Option) *Graph {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.name != "" {
		name = o.name
	}

	g := &Graph{
		Name:      name,
		id:        uuid.New(),
		opts:      o,
		pending:   make(map[int]struct{}),
		compilers: make(map[string]backend.Compiler),
		cook:      make(map[string]*cookPlatform),
	}
	for format, c := range o.compilers {
		g.compilers[format] = c
	}

	if o.pool != nil {
		g.pool = o.pool.pool
	} else {
		g.pool = parallel.NewWorkerPool(o.workers)
		g.ownPool = true
	}
	if o.renderQueue != nil {
		g.queue = o.renderQueue
	} else {
		g.ownQueue = parallel.NewSerialQueue()
		g.queue = g.ownQueue
	}

	g.idle = make(chan struct{})
	close(g.idle)
	return g
}

// ID returns the instance id carried by every proxy of the graph.
func (g *Graph) ID() uuid.UUID { return g.id }

// AddBinding appends a binding group and returns its index.
func (g *Graph) AddBinding(name string, accepts func(any) bool) int {
	g.Bindings = append(g.Bindings, Binding{Name: name, Accepts: accepts})
	return len(g.Bindings) - 1
}

// AddDataInterface appends a data interface slot in binding group binding
// and returns its index. di may be nil to reserve an empty slot.
func (g *Graph) AddDataInterface(di DataInterface, binding int) int {
	g.DataInterfaces = append(g.DataInterfaces, di)
	g.DataInterfaceToBinding = append(g.DataInterfaceToBinding, binding)
	return len(g.DataInterfaces) - 1
}

// AddKernel appends a kernel and returns its index.
func (g *Graph) AddKernel(name string, src *KernelSource) int {
	g.Kernels = append(g.Kernels, &Kernel{Name: name, Source: src})
	return len(g.Kernels) - 1
}

// Connect appends an edge.
func (g *Graph) Connect(e Edge) {
	g.Edges = append(g.Edges, e)
}

// kernelSource returns the source of kernel k or nil.
func (g *Graph) kernelSource(k int) *KernelSource {
	if k < 0 || k >= len(g.Kernels) || g.Kernels[k] == nil {
		return nil
	}
	return g.Kernels[k].Source
}

// dataInterface returns the data interface at slot i or nil.
func (g *Graph) dataInterface(i int) DataInterface {
	if i < 0 || i >= len(g.DataInterfaces) {
		return nil
	}
	return g.DataInterfaces[i]
}

// bindingOf returns the binding group of data interface slot i.
func (g *Graph) bindingOf(i int) (int, bool) {
	if i < 0 || i >= len(g.DataInterfaceToBinding) {
		return 0, false
	}
	return g.DataInterfaceToBinding[i], true
}

// kernelEdges returns the indices of edges targeting kernel k and the
// distinct data interface slots they reference, both in edge order.
func (g *Graph) kernelEdges(k int) (edges, dataInterfaces []int) {
	seen := make(map[int]struct{})
	for i, e := range g.Edges {
		if e.KernelIndex != k {
			continue
		}
		edges = append(edges, i)
		if _, ok := seen[e.DataInterfaceIndex]; !ok {
			seen[e.DataInterfaceIndex] = struct{}{}
			dataInterfaces = append(dataInterfaces, e.DataInterfaceIndex)
		}
	}
	return edges, dataInterfaces
}

// friendlyName labels kernel k in diagnostics.
func (g *Graph) friendlyName(k int) string {
	if src := g.kernelSource(k); src != nil {
		return g.Name + "/" + src.EntryPoint
	}
	return g.Name
}

// logAttrs returns the attributes every graph warning about kernel k carries.
func (g *Graph) logAttrs(k int) []any {
	attrs := []any{slog.String("graph", g.Name)}
	if k >= 0 && k < len(g.Kernels) && g.Kernels[k] != nil {
		attrs = append(attrs, slog.String("kernel", g.Kernels[k].Name))
	} else {
		attrs = append(attrs, slog.Int("kernel_index", k))
	}
	return attrs
}

func (g *Graph) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// files returns the include registry of the graph.
func (g *Graph) files() *shader.Files {
	if g.opts.files != nil {
		return g.opts.files
	}
	return shader.Builtin
}

// compiler returns the compiler for format, creating it from the registry
// on first use.
func (g *Graph) compiler(format string) (backend.Compiler, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.compilerLocked(format)
}

func (g *Graph) compilerLocked(format string) (backend.Compiler, error) {
	if c, ok := g.compilers[format]; ok {
		return c, nil
	}
	c, err := backend.New(format)
	if err != nil {
		return nil, err
	}
	g.compilers[format] = c
	return c, nil
}

// dialect returns the dialect BuildKernelSource assembles in.
func (g *Graph) dialect() shader.Dialect {
	if g.opts.dialect != nil {
		return g.opts.dialect
	}
	if c, err := g.compiler(g.opts.runtimeFormat); err == nil {
		return c.Dialect()
	}
	return shader.WGSL
}
