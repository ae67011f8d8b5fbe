package computegraph

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestBuildKernelShaderMetadata(t *testing.T) {
	g, _, _ := scenarioGraph(t, newMockCompiler("mock"))
	layout, err := g.BuildKernelShaderMetadata(0)
	if err != nil {
		t.Fatalf("BuildKernelShaderMetadata: %v", err)
	}

	if layout.Name != "G/CSMain" {
		t.Errorf("Name = %q, want G/CSMain", layout.Name)
	}
	want := []struct {
		name    string
		binding uint32
		di      int
	}{
		{"Threads_DI0_Exec", 0, 0},
		{"Values_DI1_OutBuf", 1, 1},
	}
	if len(layout.Parameters) != len(want) {
		t.Fatalf("Parameters = %+v", layout.Parameters)
	}
	for i, w := range want {
		p := layout.Parameters[i]
		if p.Name != w.name || p.Binding != w.binding || p.DataInterfaceIndex != w.di {
			t.Errorf("Parameters[%d] = %+v, want %s@%d from DI%d", i, p, w.name, w.binding, w.di)
		}
	}

	if p, ok := layout.Lookup("Values_DI1_OutBuf"); !ok || p.Kind != ParameterReadOnlyStorage {
		t.Errorf("Lookup(Values_DI1_OutBuf) = %+v, %v", p, ok)
	}
	if s := layout.Scope(1); s.UID != "DI1_OutBuf" || s.MustBinding("Values") != 1 {
		t.Errorf("Scope(1) = %+v", s)
	}
	if s := layout.Scope(9); s.UID != "" {
		t.Errorf("Scope of unbound interface = %+v", s)
	}
}

func TestBuildKernelShaderMetadataStable(t *testing.T) {
	g, _, _ := scenarioGraph(t, newMockCompiler("mock"))
	// A second edge to an interface already bound must not reorder.
	g.Connect(Edge{DataInterfaceIndex: 0, KernelIndex: 0, KernelInput: true})

	a, _ := g.BuildKernelShaderMetadata(0)
	b, _ := g.BuildKernelShaderMetadata(0)
	if !a.Equal(b) {
		t.Errorf("layouts differ:\n%s\n%s", a, b)
	}
	if len(a.Parameters) != 2 {
		t.Errorf("duplicate edge added parameters: %s", a)
	}
}

func TestBuildKernelShaderMetadataErrors(t *testing.T) {
	g := newTestGraph(t, newMockCompiler("mock"))
	if _, err := g.BuildKernelShaderMetadata(0); !errors.Is(err, ErrKernelIndex) {
		t.Errorf("err = %v, want ErrKernelIndex", err)
	}
}

func TestParameterBuilderDuplicate(t *testing.T) {
	g, exec, _ := scenarioGraph(t, newMockCompiler("mock"))
	exec.params = []string{"Threads", "Threads"}

	layout, _ := g.BuildKernelShaderMetadata(0)
	if n := len(layout.Parameters); n != 2 {
		t.Errorf("Parameters = %d, want 2", n)
	}
}

func TestBindGroupLayoutEntries(t *testing.T) {
	layout := &ParameterLayout{Parameters: []Parameter{
		{Name: "A", Kind: ParameterUniform, Binding: 0, Size: 16},
		{Name: "B", Kind: ParameterReadOnlyStorage, Binding: 1},
		{Name: "C", Kind: ParameterStorage, Binding: 2},
	}}
	entries := layout.BindGroupLayoutEntries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	wantTypes := []gputypes.BufferBindingType{
		gputypes.BufferBindingTypeUniform,
		gputypes.BufferBindingTypeReadOnlyStorage,
		gputypes.BufferBindingTypeStorage,
	}
	for i, e := range entries {
		if e.Binding != uint32(i) {
			t.Errorf("entry %d binding = %d", i, e.Binding)
		}
		if e.Visibility != gputypes.ShaderStageCompute {
			t.Errorf("entry %d visibility = %v, want compute", i, e.Visibility)
		}
		if e.Buffer == nil || e.Buffer.Type != wantTypes[i] {
			t.Errorf("entry %d buffer = %+v, want %v", i, e.Buffer, wantTypes[i])
		}
	}
	if entries[0].Buffer.MinBindingSize != 16 {
		t.Errorf("MinBindingSize = %d, want 16", entries[0].Buffer.MinBindingSize)
	}

	var nilLayout *ParameterLayout
	if nilLayout.BindGroupLayoutEntries() != nil {
		t.Error("nil layout should have no entries")
	}
}
