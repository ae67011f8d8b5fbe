package computegraph

import "testing"

func TestBuildShaderPermutationVectors(t *testing.T) {
	g, exec, out := scenarioGraph(t, newMockCompiler("mock"))
	g.Kernels[0].Source.Permutations.Add("QUALITY", 3)
	exec.perms = []string{"FAST_PATH"}
	out.perms = []string{"FAST_PATH"}
	// A second edge to OutBuf must not add its options twice.
	g.Connect(Edge{DataInterfaceIndex: 1, KernelIndex: 0})
	g.AddKernel("Empty", nil)

	vecs := g.BuildShaderPermutationVectors()
	if len(vecs) != 2 {
		t.Fatalf("vectors = %d, want 2", len(vecs))
	}
	if vecs[1] != nil {
		t.Error("kernel without source should have no vector")
	}
	if got := vecs[0].String(); got != "QUALITY:3;FAST_PATH:2;" {
		t.Errorf("vector = %s", got)
	}
	if n := vecs[0].NumPermutations(); n != 6 {
		t.Errorf("NumPermutations = %d, want 6", n)
	}

	b := mustBuild(t, g, 0)
	if !b.Permutations.Equal(vecs[0]) {
		t.Errorf("source build vector %s differs from %s", b.Permutations, vecs[0])
	}
}
