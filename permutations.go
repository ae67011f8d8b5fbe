package computegraph

import "github.com/gogpu/computegraph/shader"

// BuildShaderPermutationVectors returns the permutation vector of every
// kernel, indexed like Kernels. Each vector holds the kernel's own options
// followed by those of each bound data interface, added once per interface.
// Kernels without a source get nil.
func (g *Graph) BuildShaderPermutationVectors() []*shader.PermutationVector {
	out := make([]*shader.PermutationVector, len(g.Kernels))
	for k := range g.Kernels {
		out[k] = g.permutationVector(k)
	}
	return out
}

func (g *Graph) permutationVector(k int) *shader.PermutationVector {
	src := g.kernelSource(k)
	if src == nil {
		return nil
	}
	vec := shader.NewPermutationVector()
	vec.AddSet(src.Permutations)
	_, dis := g.kernelEdges(k)
	for _, i := range dis {
		if di := g.dataInterface(i); di != nil {
			di.Permutations(vec)
		}
	}
	return vec
}
