package computegraph

import "fmt"

// Validate reports whether every kernel with a source has exactly one
// inbound edge from an execution interface.
func Validate(g *Graph) bool {
	return g.ValidateGraph() == nil
}

// ValidateGraph is like Validate but describes the first violation. The
// returned error wraps ErrInvalidGraph.
//
// Edges naming a kernel or data interface slot outside the graph are
// violations. Edges from empty data interface slots are ignored.
func (g *Graph) ValidateGraph() error {
	counts := make([]int, len(g.Kernels))
	for i, e := range g.Edges {
		if e.KernelIndex < 0 || e.KernelIndex >= len(g.Kernels) {
			return fmt.Errorf("%w: edge %d: kernel index %d out of range", ErrInvalidGraph, i, e.KernelIndex)
		}
		if e.DataInterfaceIndex < 0 || e.DataInterfaceIndex >= len(g.DataInterfaces) {
			return fmt.Errorf("%w: edge %d: data interface index %d out of range", ErrInvalidGraph, i, e.DataInterfaceIndex)
		}
		if di := g.DataInterfaces[e.DataInterfaceIndex]; di != nil && di.IsExecutionInterface() {
			counts[e.KernelIndex]++
		}
	}

	for k, n := range counts {
		if g.kernelSource(k) == nil || n == 1 {
			continue
		}
		return fmt.Errorf("%w: kernel %q has %d execution edges, want 1", ErrInvalidGraph, g.Kernels[k].Name, n)
	}
	return nil
}

// ValidateProviders reports whether providers can back the graph's data
// interfaces: one per slot, nil only where the slot is empty.
func (g *Graph) ValidateProviders(providers []DataProvider) bool {
	if len(providers) != len(g.DataInterfaces) {
		return false
	}
	for i, p := range providers {
		if p == nil && g.DataInterfaces[i] != nil {
			return false
		}
	}
	return true
}
