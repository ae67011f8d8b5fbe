package loader

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/gogpu/computegraph"
	"github.com/gogpu/computegraph/datainterface"
	"github.com/gogpu/computegraph/shader"
)

var (
	// ErrDuplicate is returned when two blocks of a graph share a name.
	ErrDuplicate = errors.New("loader: duplicate name")
	// ErrReference is returned when a block names something the graph does
	// not declare.
	ErrReference = errors.New("loader: unresolved reference")
	// ErrKernelSource is returned for a kernel without exactly one of
	// source and source_file.
	ErrKernelSource = errors.New("loader: kernel needs one of source or source_file")
)

// defaultBindingName is created when a graph declares no binding.
const defaultBindingName = "Default"

// LoadFile reads and builds every graph of the file at path. Relative
// source_file and include file paths are resolved against the file's
// directory. opts are applied to each graph.
func LoadFile(path string, opts ...computegraph.Option) ([]*computegraph.Graph, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	return Parse(src, path, opts...)
}

// Parse builds every graph of src. filename labels diagnostics and anchors
// relative file paths. On error no graph is returned.
func Parse(src []byte, filename string, opts ...computegraph.Option) ([]*computegraph.Graph, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("loader: failed to parse %s: %w", filename, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("loader: failed to decode %s: %w", filename, diags)
	}

	b := &builder{dir: filepath.Dir(filename)}
	graphs := make([]*computegraph.Graph, 0, len(root.Graphs))
	for _, gb := range root.Graphs {
		g, err := b.graph(gb, opts)
		if err != nil {
			for _, built := range graphs {
				_ = built.Close()
			}
			return nil, fmt.Errorf("loader: %s: graph %q: %w", filename, gb.Name, err)
		}
		graphs = append(graphs, g)
	}

	computegraph.Logger().Debug("loader: graphs loaded", "file", filename, "graphs", len(graphs))
	return graphs, nil
}

// builder turns decoded blocks into graphs.
type builder struct {
	dir string
}

func (b *builder) graph(gb *graphBlock, opts []computegraph.Option) (*computegraph.Graph, error) {
	// Resolve everything before NewGraph starts the compile pool.
	bindings, err := indexNames("binding", len(gb.Bindings), func(i int) string { return gb.Bindings[i].Name })
	if err != nil {
		return nil, err
	}
	bindingNames := make([]string, 0, len(gb.Bindings))
	for _, bb := range gb.Bindings {
		bindingNames = append(bindingNames, bb.Name)
	}
	if len(bindingNames) == 0 {
		bindingNames = []string{defaultBindingName}
		bindings[defaultBindingName] = 0
	}

	dis := make([]computegraph.DataInterface, len(gb.DataInterfaces))
	diBindings := make([]int, len(gb.DataInterfaces))
	diIndex, err := indexNames("data_interface", len(gb.DataInterfaces), func(i int) string { return gb.DataInterfaces[i].Name })
	if err != nil {
		return nil, err
	}
	for i, db := range gb.DataInterfaces {
		if dis[i], err = newDataInterface(db); err != nil {
			return nil, fmt.Errorf("data_interface %q: %w", db.Name, err)
		}
		if db.Binding == "" {
			continue
		}
		idx, ok := bindings[db.Binding]
		if !ok {
			return nil, fmt.Errorf("%w: data_interface %q: binding %q", ErrReference, db.Name, db.Binding)
		}
		diBindings[i] = idx
	}

	includes, err := b.includes(gb.Kernels)
	if err != nil {
		return nil, err
	}
	kernels := make([]*computegraph.KernelSource, len(gb.Kernels))
	kernelIndex, err := indexNames("kernel", len(gb.Kernels), func(i int) string { return gb.Kernels[i].Name })
	if err != nil {
		return nil, err
	}
	for i, kb := range gb.Kernels {
		if kernels[i], err = b.kernel(kb, includes); err != nil {
			return nil, fmt.Errorf("kernel %q: %w", kb.Name, err)
		}
	}

	edges := make([]computegraph.Edge, 0, len(gb.Edges))
	for i, eb := range gb.Edges {
		e, err := resolveEdge(eb, diIndex, dis, kernelIndex, kernels)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		edges = append(edges, e)
	}

	g := computegraph.NewGraph(gb.Name, opts...)
	for _, name := range bindingNames {
		g.AddBinding(name, nil)
	}
	for i, di := range dis {
		g.AddDataInterface(di, diBindings[i])
	}
	for i, kb := range gb.Kernels {
		g.AddKernel(kb.Name, kernels[i])
	}
	for _, e := range edges {
		g.Connect(e)
	}
	return g, nil
}

// indexNames maps the n names returned by name to their positions.
func indexNames(kind string, n int, name func(int) string) (map[string]int, error) {
	out := make(map[string]int, n)
	for i := range n {
		nm := name(i)
		if _, dup := out[nm]; dup {
			return nil, fmt.Errorf("%w: %s %q", ErrDuplicate, kind, nm)
		}
		out[nm] = i
	}
	return out, nil
}

func newDataInterface(db *dataInterfaceBlock) (computegraph.DataInterface, error) {
	attrs, diags := db.Config.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	values := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		values[name] = v
	}
	return datainterface.New(db.Type, values)
}

func (b *builder) kernel(kb *kernelBlock, includes map[string]*shader.Source) (*computegraph.KernelSource, error) {
	body, err := b.text(kb.Source, kb.SourceFile)
	if err != nil {
		return nil, err
	}

	src := &computegraph.KernelSource{
		EntryPoint: kb.EntryPoint,
		GroupSize:  [3]uint32{1, 1, 1},
		Body:       body,
	}
	if len(kb.GroupSize) > 3 {
		return nil, fmt.Errorf("loader: group_size has %d dimensions, want at most 3", len(kb.GroupSize))
	}
	copy(src.GroupSize[:], kb.GroupSize)
	if kb.Default {
		src.Flags |= computegraph.KernelFlagDefault
	}

	if src.ExternalInputs, err = functions(kb.Inputs); err != nil {
		return nil, err
	}
	if src.ExternalOutputs, err = functions(kb.Outputs); err != nil {
		return nil, err
	}

	for _, name := range slices.Sorted(maps.Keys(kb.Defines)) {
		src.Definitions.Set(name, kb.Defines[name])
	}
	for _, p := range kb.Permutations {
		src.Permutations.Add(p.Name, max(p.Values, 2))
	}
	for _, ib := range kb.Includes {
		src.AdditionalSources = append(src.AdditionalSources, includes[ib.Path])
	}
	return src, nil
}

// includes builds the include blocks of every kernel. A virtual path may
// be declared by several kernels as long as the text agrees.
func (b *builder) includes(kernels []*kernelBlock) (map[string]*shader.Source, error) {
	out := make(map[string]*shader.Source)
	var deps [][2]string
	for _, kb := range kernels {
		for _, ib := range kb.Includes {
			text, err := b.text(ib.Source, ib.File)
			if err != nil {
				return nil, fmt.Errorf("include %q: %w", ib.Path, err)
			}
			if prev, ok := out[ib.Path]; ok {
				if prev.Text != text {
					return nil, fmt.Errorf("%w: include %q declared with different text", ErrDuplicate, ib.Path)
				}
			} else {
				out[ib.Path] = &shader.Source{VirtualPath: ib.Path, Text: text}
			}
			for _, d := range ib.DependsOn {
				deps = append(deps, [2]string{ib.Path, d})
			}
		}
	}
	for _, d := range deps {
		dep, ok := out[d[1]]
		if !ok {
			return nil, fmt.Errorf("%w: include %q depends on %q", ErrReference, d[0], d[1])
		}
		src := out[d[0]]
		if !slices.Contains(src.Dependencies, dep) {
			src.Dependencies = append(src.Dependencies, dep)
		}
	}
	return out, nil
}

// text returns inline text, or the content of file relative to the
// builder's directory. Exactly one must be set.
func (b *builder) text(inline, file string) (string, error) {
	switch {
	case inline != "" && file != "":
		return "", ErrKernelSource
	case inline != "":
		return inline, nil
	case file != "":
		if !filepath.IsAbs(file) {
			file = filepath.Join(b.dir, file)
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("loader: %w", err)
		}
		return string(data), nil
	}
	return "", ErrKernelSource
}

func functions(blocks []*functionBlock) ([]shader.Function, error) {
	out := make([]shader.Function, 0, len(blocks))
	for _, fb := range blocks {
		f := shader.Function{Name: fb.Name, Return: fb.Return}
		for _, p := range fb.Params {
			param, err := parseParam(p)
			if err != nil {
				return nil, fmt.Errorf("function %q: %w", fb.Name, err)
			}
			f.Params = append(f.Params, param)
		}
		out = append(out, f)
	}
	return out, nil
}

// parseParam reads "type" or "modifier type".
func parseParam(s string) (shader.Param, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		return shader.Param{Type: fields[0]}, nil
	case 2:
		m, ok := shader.ParseParamModifier(fields[0])
		if !ok {
			return shader.Param{}, fmt.Errorf("loader: unknown parameter modifier %q", fields[0])
		}
		return shader.Param{Type: fields[1], Modifier: m}, nil
	}
	return shader.Param{}, fmt.Errorf("loader: malformed parameter %q", s)
}

// resolveEdge maps the names of an edge block to graph indices.
func resolveEdge(eb *edgeBlock, diIndex map[string]int, dis []computegraph.DataInterface,
	kernelIndex map[string]int, kernels []*computegraph.KernelSource,
) (computegraph.Edge, error) {
	d, ok := diIndex[eb.DataInterface]
	if !ok {
		return computegraph.Edge{}, fmt.Errorf("%w: data_interface %q", ErrReference, eb.DataInterface)
	}
	k, ok := kernelIndex[eb.Kernel]
	if !ok {
		return computegraph.Edge{}, fmt.Errorf("%w: kernel %q", ErrReference, eb.Kernel)
	}
	kernelFn := eb.KernelFunction
	if kernelFn == "" {
		kernelFn = eb.Function
	}

	e := computegraph.Edge{
		DataInterfaceIndex:          d,
		KernelIndex:                 k,
		BindingFunctionNameOverride: eb.NameOverride,
		BindingFunctionNamespace:    eb.Namespace,
	}
	src := kernels[k]
	if i := functionIndex(src.ExternalInputs, kernelFn); i >= 0 {
		e.KernelInput = true
		e.KernelBindingIndex = i
	} else if i := functionIndex(src.ExternalOutputs, kernelFn); i >= 0 {
		e.KernelBindingIndex = i
	} else {
		return computegraph.Edge{}, fmt.Errorf("%w: kernel %q has no function %q", ErrReference, eb.Kernel, kernelFn)
	}

	supported := dis[d].SupportedOutputs()
	if e.KernelInput {
		supported = dis[d].SupportedInputs()
	}
	i := functionIndex(supported, eb.Function)
	if i < 0 {
		return computegraph.Edge{}, fmt.Errorf("%w: data_interface %q has no %s function %q",
			ErrReference, eb.DataInterface, direction(e.KernelInput), eb.Function)
	}
	e.DataInterfaceBindingIndex = i
	return e, nil
}

func functionIndex(fns []shader.Function, name string) int {
	return slices.IndexFunc(fns, func(f shader.Function) bool { return f.Name == name })
}

func direction(input bool) string {
	if input {
		return "input"
	}
	return "output"
}
