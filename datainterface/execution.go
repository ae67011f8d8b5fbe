package datainterface

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/gogpu/computegraph"
	"github.com/gogpu/computegraph/shader"
)

// Execution is the execution interface of a kernel: it supplies the number
// of threads to dispatch.
type Execution struct {
	computegraph.DataInterfaceBase

	// Threads is the default thread count used when the bound object does
	// not provide one.
	Threads uint32
}

// ThreadCounter is implemented by binding objects that size the dispatch.
type ThreadCounter interface {
	NumThreads() uint32
}

func newExecution(attrs map[string]cty.Value) (computegraph.DataInterface, error) {
	if err := checkAttrs("execution", attrs, "threads"); err != nil {
		return nil, err
	}
	threads, err := uintAttr(attrs, "threads", 1)
	if err != nil {
		return nil, err
	}
	return &Execution{Threads: threads}, nil
}

func (*Execution) ClassName() string { return "Execution" }

func (*Execution) SupportedInputs() []shader.Function {
	return []shader.Function{{Name: "ReadNumThreads", Return: "u32"}}
}

func (*Execution) ShaderSource(scope shader.Scope) string {
	return fmt.Sprintf(`@group(%d) @binding(%d) var<uniform> %s: u32;
fn %s() -> u32 { return %s; }
`,
		scope.Group, scope.MustBinding("NumThreads"), scope.Name("NumThreads"),
		scope.Name("ReadNumThreads"), scope.Name("NumThreads"))
}

func (*Execution) ShaderParameters(_ string, b *computegraph.ParameterBuilder) {
	b.AddUniform("NumThreads", "u32", 4)
}

func (e *Execution) ShaderHash(key *shader.HashKey) {
	key.Append("Execution")
	key.Append(strconv.FormatUint(uint64(e.Threads), 10))
}

func (*Execution) IsExecutionInterface() bool      { return true }
func (*Execution) CanSupportUnifiedDispatch() bool { return true }

func (e *Execution) CreateDataProvider() (computegraph.DataProvider, error) {
	return &ExecutionProvider{threads: e.Threads}, nil
}

// ExecutionProvider backs an Execution for one bound object.
type ExecutionProvider struct {
	mu      sync.Mutex
	threads uint32
	object  any
}

func (p *ExecutionProvider) Initialize(di computegraph.DataInterface, obj any, _, _ uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.object = obj
	if e, ok := di.(*Execution); ok {
		p.threads = e.Threads
	}
	if tc, ok := obj.(ThreadCounter); ok {
		p.threads = tc.NumThreads()
	}
}

// NumThreads returns the thread count to dispatch.
func (p *ExecutionProvider) NumThreads() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.threads
}

// Object returns the bound object.
func (p *ExecutionProvider) Object() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.object
}
