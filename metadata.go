package computegraph

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/computegraph/shader"
)

// ParameterKind is the binding type of a shader parameter.
type ParameterKind uint8

const (
	// ParameterUniform is a uniform buffer.
	ParameterUniform ParameterKind = iota
	// ParameterReadOnlyStorage is a read-only storage buffer.
	ParameterReadOnlyStorage
	// ParameterStorage is a read-write storage buffer.
	ParameterStorage
)

func (k ParameterKind) String() string {
	switch k {
	case ParameterUniform:
		return "uniform"
	case ParameterReadOnlyStorage:
		return "read-only-storage"
	case ParameterStorage:
		return "storage"
	default:
		return fmt.Sprintf("ParameterKind(%d)", k)
	}
}

func (k ParameterKind) bufferType() gputypes.BufferBindingType {
	switch k {
	case ParameterReadOnlyStorage:
		return gputypes.BufferBindingTypeReadOnlyStorage
	case ParameterStorage:
		return gputypes.BufferBindingTypeStorage
	default:
		return gputypes.BufferBindingTypeUniform
	}
}

// Parameter is one member of a kernel's parameter block.
type Parameter struct {
	// Name is the prefixed symbol, e.g. "Values_DI1_Buffer".
	Name string
	// Local is the name the data interface declared.
	Local string
	Kind  ParameterKind
	// Type is the element type in the shader dialect.
	Type string
	// Size is the minimum binding size in bytes, 0 if unknown.
	Size uint64

	Binding            uint32
	DataInterfaceIndex int
}

// ParameterBuilder collects the parameters of one data interface.
type ParameterBuilder struct {
	layout  *ParameterLayout
	diIndex int
	uid     string
	locals  map[string]uint32
}

// UID returns the unique name of the data interface being built.
func (b *ParameterBuilder) UID() string { return b.uid }

// AddUniform declares a uniform parameter.
func (b *ParameterBuilder) AddUniform(name, typ string, size uint64) {
	b.add(name, typ, ParameterUniform, size)
}

// AddStorage declares a storage buffer parameter.
func (b *ParameterBuilder) AddStorage(name, typ string, readOnly bool) {
	kind := ParameterStorage
	if readOnly {
		kind = ParameterReadOnlyStorage
	}
	b.add(name, typ, kind, 0)
}

func (b *ParameterBuilder) add(name, typ string, kind ParameterKind, size uint64) {
	if _, dup := b.locals[name]; dup {
		Logger().Warn("computegraph: duplicate shader parameter ignored",
			"layout", b.layout.Name, "data_interface", b.uid, "parameter", name)
		return
	}
	binding := uint32(len(b.layout.Parameters)) //nolint:gosec // parameter count is bounded by the graph
	b.locals[name] = binding
	b.layout.Parameters = append(b.layout.Parameters, Parameter{
		Name:               name + "_" + b.uid,
		Local:              name,
		Kind:               kind,
		Type:               typ,
		Size:               size,
		Binding:            binding,
		DataInterfaceIndex: b.diIndex,
	})
}

// ParameterLayout is the parameter block a kernel's program expects.
// Parameters are ordered by the kernel's edges, deduplicated by data
// interface, and bound sequentially in group Group.
type ParameterLayout struct {
	// Name is graph scoped: "<graph>/<entry point>".
	Name       string
	Group      uint32
	Parameters []Parameter

	scopes map[int]shader.Scope
}

// Scope returns the naming and binding scope of data interface diIndex.
// Interfaces not bound to the kernel get an empty scope.
func (l *ParameterLayout) Scope(diIndex int) shader.Scope {
	if l == nil {
		return shader.Scope{}
	}
	return l.scopes[diIndex]
}

// Lookup returns the parameter with the given prefixed name.
func (l *ParameterLayout) Lookup(name string) (Parameter, bool) {
	if l == nil {
		return Parameter{}, false
	}
	for _, p := range l.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// BindGroupLayoutEntries converts the layout to compute-stage bind group
// layout entries.
func (l *ParameterLayout) BindGroupLayoutEntries() []gputypes.BindGroupLayoutEntry {
	if l == nil {
		return nil
	}
	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(l.Parameters))
	for _, p := range l.Parameters {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    p.Binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer: &gputypes.BufferBindingLayout{
				Type:           p.Kind.bufferType(),
				MinBindingSize: p.Size,
			},
		})
	}
	return entries
}

// Equal reports whether two layouts declare the same parameters in the same
// order.
func (l *ParameterLayout) Equal(o *ParameterLayout) bool {
	if l == nil || o == nil {
		return l == o
	}
	if l.Name != o.Name || l.Group != o.Group || len(l.Parameters) != len(o.Parameters) {
		return false
	}
	for i := range l.Parameters {
		if l.Parameters[i] != o.Parameters[i] {
			return false
		}
	}
	return true
}

// String lists the parameters one per line.
func (l *ParameterLayout) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (group %d)\n", l.Name, l.Group)
	for _, p := range l.Parameters {
		fmt.Fprintf(&b, "  @binding(%d) %s %s: %s\n", p.Binding, p.Kind, p.Name, p.Type)
	}
	return b.String()
}

// BuildKernelShaderMetadata assembles the parameter layout of kernel k.
// Repeated calls on an unchanged graph return equal layouts.
func (g *Graph) BuildKernelShaderMetadata(k int) (*ParameterLayout, error) {
	if k < 0 || k >= len(g.Kernels) {
		return nil, fmt.Errorf("%w: %d", ErrKernelIndex, k)
	}
	return g.buildLayout(k), nil
}

func (g *Graph) buildLayout(k int) *ParameterLayout {
	layout := &ParameterLayout{
		Name:   g.friendlyName(k),
		scopes: make(map[int]shader.Scope),
	}
	_, dis := g.kernelEdges(k)
	for _, i := range dis {
		di := g.dataInterface(i)
		if di == nil {
			continue
		}
		uid := UniqueDataInterfaceName(di, i)
		b := &ParameterBuilder{layout: layout, diIndex: i, uid: uid, locals: make(map[string]uint32)}
		di.ShaderParameters(uid, b)
		layout.scopes[i] = shader.NewScope(uid, layout.Group, b.locals)
	}
	return layout
}
