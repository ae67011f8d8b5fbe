// Package computegraph compiles graphs of compute kernels and data
// interfaces into programs and publishes them to an execution engine.
//
// # Overview
//
// A Graph declares kernels, data interfaces and the edges between them.
// Kernels call external functions; edges bind each of those functions to a
// function a data interface supports. computegraph validates the graph,
// assembles one source per kernel with a generated shim for every edge,
// computes parameter layouts and permutation vectors, compiles every kernel
// through a back end and publishes an immutable RenderProxy.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/computegraph"
//	    "github.com/gogpu/computegraph/datainterface"
//	    _ "github.com/gogpu/computegraph/backend/spirv"
//	)
//
//	g := computegraph.NewGraph("Deformer")
//	defer g.Close()
//
//	mesh := g.AddBinding("Mesh", nil)
//	exec := g.AddDataInterface(&datainterface.Execution{}, mesh)
//	out := g.AddDataInterface(&datainterface.Buffer{Type: "f32"}, mesh)
//	k := g.AddKernel("Main", &computegraph.KernelSource{...})
//	g.Connect(computegraph.Edge{DataInterfaceIndex: exec, KernelIndex: k, KernelInput: true})
//	g.Connect(computegraph.Edge{DataInterfaceIndex: out, KernelIndex: k, DataInterfaceBindingIndex: 1})
//
//	if err := g.UpdateResources(true); err != nil {
//	    log.Fatal(err)
//	}
//	proxy := g.RenderProxy()
//
// # Compilation
//
// UpdateResources compiles for the runtime format (DefaultRuntimeFormat
// unless WithRuntimeFormat is given) either synchronously or on the compile
// pool. Every update is a generation: a new update cancels the compiles of
// the previous one. The proxy of a generation is published only after all
// of its compiles have finished, so a proxy never mixes programs of two
// updates. A kernel that fails keeps its previous program. The kernel
// flagged KernelFlagDefault always compiles synchronously and its failure
// is fatal.
//
// BeginCacheForPlatform compiles the same kernels for the formats of a
// build target into a separate cache. CookDependencies and
// HashDependenciesForCook give the build system an invalidation key.
//
// # Thread Safety
//
// The graph definition is edited from one goroutine. The kernel-compiled
// hook may run on compile workers. A published RenderProxy is read-only
// and safe for concurrent use; the graph releases replaced proxies through
// the RenderQueue.
package computegraph
