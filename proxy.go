package computegraph

import (
	"slices"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gogpu/computegraph/backend"
	"github.com/gogpu/computegraph/shader"
)

// BoundDataInterface is a data interface bound to a kernel invocation.
// Primary interfaces share the kernel's binding group.
type BoundDataInterface struct {
	Index   int
	Primary bool
}

// KernelInvocation is the execution-facing record of one kernel.
type KernelInvocation struct {
	KernelIndex int
	Name        string
	EntryPoint  string
	GroupSize   [3]uint32

	// Program is nil until the kernel first compiles.
	Program      *backend.Program
	Layout       *ParameterLayout
	Permutations *shader.PermutationVector

	// ExecutionIndex is the data interface slot driving the dispatch shape,
	// -1 if the kernel has none.
	ExecutionIndex int
	BindingGroup   int

	// DataInterfaces lists the bound interfaces in edge order.
	DataInterfaces []BoundDataInterface

	// UnifiedDispatch is set when every primary interface can be read by a
	// single dispatch.
	UnifiedDispatch bool

	Readback   []int
	PreSubmit  []int
	PostSubmit []int
}

// PermutationID returns the permutation id for named option values.
func (ki *KernelInvocation) PermutationID(values map[string]int) (int, error) {
	return ki.Permutations.PermutationID(values)
}

// Primary returns the slots of the primary data interfaces.
func (ki *KernelInvocation) Primary() []int {
	var out []int
	for _, b := range ki.DataInterfaces {
		if b.Primary {
			out = append(out, b.Index)
		}
	}
	return out
}

// RenderProxy is an immutable snapshot of a compiled graph. It is shared
// with the execution engine and must not be modified.
type RenderProxy struct {
	GraphName   string
	GraphID     uuid.UUID
	Generation  uint64
	Invocations []KernelInvocation

	released atomic.Bool
}

// Released reports whether the graph has dropped the proxy. Engines holding
// a released proxy may keep using it until their own queue releases it.
func (p *RenderProxy) Released() bool { return p.released.Load() }

// Invocation returns the invocation of kernel k.
func (p *RenderProxy) Invocation(k int) (*KernelInvocation, bool) {
	for i := range p.Invocations {
		if p.Invocations[i].KernelIndex == k {
			return &p.Invocations[i], true
		}
	}
	return nil, false
}

// proxyPlan is the program-independent part of a proxy, captured when an
// update starts so later edits to the graph do not leak into it.
type proxyPlan struct {
	generation  uint64
	level       shader.FeatureLevel
	invocations []KernelInvocation
}

// RenderProxy returns the published proxy, or nil before the first update
// completes.
func (g *Graph) RenderProxy() *RenderProxy { return g.proxy.Load() }

// buildPlan classifies the data interfaces bound to every kernel with a
// source. builds supplies layouts and permutations where available.
func (g *Graph) buildPlan(gen uint64, level shader.FeatureLevel, builds map[int]*KernelSourceBuild) *proxyPlan {
	plan := &proxyPlan{generation: gen, level: level}
	for k, kernel := range g.Kernels {
		src := g.kernelSource(k)
		if src == nil {
			continue
		}
		inv := KernelInvocation{
			KernelIndex:    k,
			Name:           kernel.Name,
			EntryPoint:     src.EntryPoint,
			GroupSize:      src.GroupSize,
			ExecutionIndex: -1,
		}
		if b, ok := builds[k]; ok {
			inv.Layout = b.Layout
			inv.Permutations = b.Permutations
		} else {
			inv.Layout = g.buildLayout(k)
			inv.Permutations = g.permutationVector(k)
		}
		g.classify(k, &inv)
		plan.invocations = append(plan.invocations, inv)
	}
	return plan
}

func (g *Graph) classify(k int, inv *KernelInvocation) {
	edges, dis := g.kernelEdges(k)

	for _, ei := range edges {
		i := g.Edges[ei].DataInterfaceIndex
		if di := g.dataInterface(i); di != nil && di.IsExecutionInterface() {
			inv.ExecutionIndex = i
			inv.BindingGroup, _ = g.bindingOf(i)
			break
		}
	}

	inv.UnifiedDispatch = true
	for _, i := range dis {
		di := g.dataInterface(i)
		if di == nil {
			continue
		}
		group, _ := g.bindingOf(i)
		primary := inv.ExecutionIndex >= 0 && group == inv.BindingGroup
		inv.DataInterfaces = append(inv.DataInterfaces, BoundDataInterface{Index: i, Primary: primary})
		if primary && !di.CanSupportUnifiedDispatch() {
			inv.UnifiedDispatch = false
		}
	}

	for _, ei := range edges {
		e := g.Edges[ei]
		di := g.dataInterface(e.DataInterfaceIndex)
		if e.KernelInput || di == nil {
			continue
		}
		if di.RequiresReadback() {
			inv.Readback = appendUnique(inv.Readback, e.DataInterfaceIndex)
		}
		if di.RequiresPreSubmitCall() {
			inv.PreSubmit = appendUnique(inv.PreSubmit, e.DataInterfaceIndex)
		}
		if di.RequiresPostSubmitCall() {
			inv.PostSubmit = appendUnique(inv.PostSubmit, e.DataInterfaceIndex)
		}
	}
}

func appendUnique(s []int, v int) []int {
	if slices.Contains(s, v) {
		return s
	}
	return append(s, v)
}

// publishLocked builds the proxy of plan from the current programs and
// swaps it in. The previous proxy is released on the render queue.
// g.mu must be held.
func (g *Graph) publishLocked(plan *proxyPlan) {
	if plan == nil || plan.generation <= g.publishGen {
		return
	}
	g.publishGen = plan.generation

	p := &RenderProxy{
		GraphName:   g.Name,
		GraphID:     g.id,
		Generation:  plan.generation,
		Invocations: slices.Clone(plan.invocations),
	}
	for i := range p.Invocations {
		inv := &p.Invocations[i]
		if k := inv.KernelIndex; k < len(g.resources) && g.resources[k] != nil {
			if r, ok := g.resources[k].Lookup(plan.level); ok {
				inv.Program = r.Program()
			}
		}
	}

	g.releaseProxy(g.proxy.Swap(p))
	proxyBuildsTotal.Inc()
	Logger().Info("computegraph: render proxy published",
		"graph", g.Name,
		"generation", p.Generation,
		"invocations", len(p.Invocations))
}

// releaseProxy hands old to the render queue.
func (g *Graph) releaseProxy(old *RenderProxy) {
	if old == nil {
		return
	}
	g.queue.Enqueue(func() { old.released.Store(true) })
}
