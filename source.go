package computegraph

import (
	"fmt"
	"strings"

	"github.com/gogpu/computegraph/shader"
)

// GeneratedSource is a file produced while building a kernel, served at
// VirtualPath during compilation.
type GeneratedSource struct {
	VirtualPath string
	Text        string
}

// KernelSourceBuild is the assembled source of one kernel and everything
// needed to compile and cache it.
type KernelSourceBuild struct {
	KernelIndex  int
	FriendlyName string
	EntryPoint   string
	GroupSize    [3]uint32

	// Source is served at shader.GeneratedKernelPath.
	Source string
	// HashKey identifies the effective source for caching.
	HashKey string

	GeneratedSources  []GeneratedSource
	AdditionalSources []*shader.Source

	Definitions  shader.DefinitionSet
	Permutations *shader.PermutationVector
	Layout       *ParameterLayout

	// Dialect is the dialect Source was assembled in.
	Dialect shader.Dialect
}

// Includes returns the generated and additional sources by virtual path.
func (b *KernelSourceBuild) Includes() map[string]string {
	out := make(map[string]string, len(b.GeneratedSources)+len(b.AdditionalSources))
	for _, s := range b.AdditionalSources {
		out[s.VirtualPath] = s.Text
	}
	for _, s := range b.GeneratedSources {
		out[s.VirtualPath] = s.Text
	}
	return out
}

// BuildKernelSource assembles kernel k in the graph's dialect.
//
// The source consists of struct declarations, includes of additional
// sources, each bound data interface's code, one shim per edge and finally
// the kernel body. Edges naming a function the kernel or data interface does
// not declare are skipped with a warning.
func (g *Graph) BuildKernelSource(k int) (*KernelSourceBuild, error) {
	return g.buildKernelSource(k, g.dialect(), g.opts.runtimeFormat)
}

// buildKernelSource assembles kernel k in dialect d. format selects the
// boilerplate hash folded into the key.
func (g *Graph) buildKernelSource(k int, d shader.Dialect, format string) (*KernelSourceBuild, error) {
	if k < 0 || k >= len(g.Kernels) {
		return nil, fmt.Errorf("%w: %d", ErrKernelIndex, k)
	}
	src := g.kernelSource(k)
	if src == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoKernelSource, g.Kernels[k].Name)
	}

	build := &KernelSourceBuild{
		KernelIndex:       k,
		FriendlyName:      g.friendlyName(k),
		EntryPoint:        src.EntryPoint,
		GroupSize:         src.GroupSize,
		AdditionalSources: shader.GatherSources(src.AdditionalSources),
		Definitions:       src.Definitions.Clone(),
		Permutations:      shader.NewPermutationVector(),
		Layout:            g.buildLayout(k),
		Dialect:           d,
	}
	build.Permutations.AddSet(src.Permutations)

	var (
		body  strings.Builder
		key   shader.HashKey
		hash  = shader.NewHasher()
		seen  = make(map[string]struct{})
		decls []string
	)

	for _, s := range build.AdditionalSources {
		body.WriteString(d.Include(s.VirtualPath))
		hash.WriteString(s.Text)
	}

	edges, dis := g.kernelEdges(k)
	for _, i := range dis {
		di := g.dataInterface(i)
		if di == nil {
			continue
		}
		scope := build.Layout.Scope(i)
		code := di.ShaderSource(scope)
		if vp := di.ShaderVirtualPath(); vp != "" {
			path := shader.GeneratedPath(scope.UID, vp)
			body.WriteString(d.Include(path))
			build.GeneratedSources = append(build.GeneratedSources, GeneratedSource{VirtualPath: path, Text: code})
			hash.WriteString(code)
		} else {
			body.WriteString(code)
		}
		decls = di.StructDeclarations(seen, decls)
		di.Defines(&build.Definitions)
		di.Permutations(build.Permutations)
		di.ShaderHash(&key)
	}

	for _, ei := range edges {
		shim, ok := g.edgeShim(k, ei, build.Layout, d)
		if ok {
			body.WriteString(shim)
		}
	}

	body.WriteString(src.Body)

	var out strings.Builder
	for _, decl := range decls {
		out.WriteString(decl)
		out.WriteByte('\n')
	}
	out.WriteString(body.String())
	build.Source = out.String()

	key.Append(build.Definitions.String())
	key.Append(build.Permutations.String())
	hash.WriteString(build.Source)
	key.AppendHash(hash.Sum())

	wrapper, err := g.files().FileHash(shader.KernelWrapperPath, format)
	if err != nil {
		return nil, fmt.Errorf("computegraph: %s: %w", build.FriendlyName, err)
	}
	key.AppendHash(wrapper)
	build.HashKey = key.String()

	Logger().Debug("computegraph: kernel source built",
		"kernel", build.FriendlyName,
		"dialect", d.Name(),
		"data_interfaces", len(dis),
		"edges", len(edges),
		"hash_key", build.HashKey)
	return build, nil
}

// edgeShim synthesizes the shim for edge ei of kernel k. It reports false
// when the edge targets an empty slot or a function that does not exist.
func (g *Graph) edgeShim(k, ei int, layout *ParameterLayout, d shader.Dialect) (string, bool) {
	e := g.Edges[ei]
	di := g.dataInterface(e.DataInterfaceIndex)
	if di == nil {
		return "", false
	}
	src := g.kernelSource(k)

	var impls, wraps []shader.Function
	if e.KernelInput {
		impls, wraps = di.SupportedInputs(), src.ExternalInputs
	} else {
		impls, wraps = di.SupportedOutputs(), src.ExternalOutputs
	}

	if e.DataInterfaceBindingIndex < 0 || e.DataInterfaceBindingIndex >= len(impls) ||
		e.KernelBindingIndex < 0 || e.KernelBindingIndex >= len(wraps) {
		bindingMismatches.Inc()
		Logger().Warn("computegraph: edge binding index out of range, skipping",
			append(g.logAttrs(k),
				"edge", ei,
				"data_interface", di.ClassName(),
				"data_interface_index", e.DataInterfaceIndex,
				"data_interface_binding", e.DataInterfaceBindingIndex,
				"data_interface_functions", len(impls),
				"kernel_binding", e.KernelBindingIndex,
				"kernel_functions", len(wraps),
				"input", e.KernelInput)...)
		return "", false
	}

	impl, wrap := impls[e.DataInterfaceBindingIndex], wraps[e.KernelBindingIndex]
	if len(impl.Params) > len(wrap.Params) {
		Logger().Warn("computegraph: data interface function takes more parameters than the kernel provides",
			append(g.logAttrs(k),
				"edge", ei,
				"data_interface", di.ClassName(),
				"data_interface_index", e.DataInterfaceIndex,
				"function", impl.String(),
				"kernel_function", wrap.String())...)
	}
	uid := layout.Scope(e.DataInterfaceIndex).UID
	return d.Shim(impl, wrap, uid, e.BindingFunctionNameOverride, e.BindingFunctionNamespace), true
}
