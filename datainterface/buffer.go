package datainterface

import (
	_ "embed"
	"strconv"
	"strings"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/gogpu/computegraph"
	"github.com/gogpu/computegraph/shader"
)

// BufferPath is the virtual path of the Buffer template.
const BufferPath = "/ComputeGraph/DataInterface/Buffer.wgsl"

// BoundsCheckOption is the permutation option that clamps buffer reads
// and drops out-of-range writes.
const BoundsCheckOption = "BUFFER_BOUNDS_CHECK"

//go:embed shaders/Buffer.wgsl
var bufferWGSL string

func init() {
	shader.Builtin.MustRegister(BufferPath, bufferWGSL)
}

// Buffer exposes a typed storage buffer.
//
// Inputs: ReadNumValues() -> u32 and ReadValue(u32) -> Type.
// Outputs: WriteValue(u32, Type).
type Buffer struct {
	computegraph.DataInterfaceBase

	// Type is the WGSL element type. The default is f32.
	Type string
	// Struct optionally declares Type. It is emitted once per kernel.
	Struct string

	Readback   bool
	PreSubmit  bool
	PostSubmit bool
	// Unified marks buffers whose full contents one dispatch can cover.
	Unified bool
}

func newBuffer(attrs map[string]cty.Value) (computegraph.DataInterface, error) {
	if err := checkAttrs("buffer", attrs, "type", "struct", "readback", "pre_submit", "post_submit", "unified"); err != nil {
		return nil, err
	}
	b := &Buffer{}
	var err error
	if b.Type, err = stringAttr(attrs, "type", "f32"); err != nil {
		return nil, err
	}
	if b.Struct, err = stringAttr(attrs, "struct", ""); err != nil {
		return nil, err
	}
	for name, dst := range map[string]*bool{
		"readback":    &b.Readback,
		"pre_submit":  &b.PreSubmit,
		"post_submit": &b.PostSubmit,
		"unified":     &b.Unified,
	} {
		if *dst, err = boolAttr(attrs, name); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (*Buffer) ClassName() string { return "Buffer" }

func (b *Buffer) typ() string {
	if b.Type == "" {
		return "f32"
	}
	return b.Type
}

func (b *Buffer) SupportedInputs() []shader.Function {
	return []shader.Function{
		{Name: "ReadNumValues", Return: "u32"},
		{Name: "ReadValue", Return: b.typ(), Params: []shader.Param{{Type: "u32"}}},
	}
}

func (b *Buffer) SupportedOutputs() []shader.Function {
	return []shader.Function{
		{Name: "WriteValue", Params: []shader.Param{{Type: "u32"}, {Type: b.typ()}}},
	}
}

func (*Buffer) ShaderVirtualPath() string { return BufferPath }

func (b *Buffer) ShaderSource(scope shader.Scope) string {
	r := strings.NewReplacer(
		"{uid}", scope.UID,
		"{type}", b.typ(),
		"{group}", strconv.FormatUint(uint64(scope.Group), 10),
		"{num_values_binding}", strconv.FormatUint(uint64(scope.MustBinding("NumValues")), 10),
		"{values_binding}", strconv.FormatUint(uint64(scope.MustBinding("Values")), 10),
	)
	return r.Replace(bufferWGSL)
}

func (b *Buffer) StructDeclarations(seen map[string]struct{}, out []string) []string {
	if b.Struct == "" {
		return out
	}
	if _, ok := seen[b.typ()]; ok {
		return out
	}
	seen[b.typ()] = struct{}{}
	return append(out, b.Struct)
}

func (*Buffer) Permutations(vec *shader.PermutationVector) {
	vec.AddBool(BoundsCheckOption)
}

func (b *Buffer) ShaderParameters(_ string, pb *computegraph.ParameterBuilder) {
	pb.AddUniform("NumValues", "u32", 4)
	pb.AddStorage("Values", "array<"+b.typ()+">", false)
}

func (b *Buffer) ShaderHash(key *shader.HashKey) {
	if h, err := shader.Builtin.FileHash(BufferPath, "wgsl"); err == nil {
		key.AppendHash(h)
	}
	key.Append(b.Struct)
}

func (b *Buffer) CanSupportUnifiedDispatch() bool { return b.Unified }
func (b *Buffer) RequiresReadback() bool          { return b.Readback }
func (b *Buffer) RequiresPreSubmitCall() bool     { return b.PreSubmit }
func (b *Buffer) RequiresPostSubmitCall() bool    { return b.PostSubmit }

func (*Buffer) CreateDataProvider() (computegraph.DataProvider, error) {
	return &BufferProvider{}, nil
}

// BufferProvider backs a Buffer for one bound object.
type BufferProvider struct {
	mu         sync.Mutex
	object     any
	inputMask  uint64
	outputMask uint64
}

func (p *BufferProvider) Initialize(_ computegraph.DataInterface, obj any, inputMask, outputMask uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.object = obj
	p.inputMask = inputMask
	p.outputMask = outputMask
}

// Masks returns the connected inputs and outputs.
func (p *BufferProvider) Masks() (input, output uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inputMask, p.outputMask
}

// Reads reports whether any kernel reads the buffer.
func (p *BufferProvider) Reads() bool {
	in, _ := p.Masks()
	return in != 0
}

// Writes reports whether any kernel writes the buffer.
func (p *BufferProvider) Writes() bool {
	_, out := p.Masks()
	return out != 0
}

// Object returns the bound object.
func (p *BufferProvider) Object() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.object
}
