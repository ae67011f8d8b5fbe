package shader

import (
	"strings"
	"testing"
)

// ===== Shim synthesis =====

func TestHLSLShim(t *testing.T) {
	tests := []struct {
		name                string
		impl, wrap          Function
		override, namespace string
		want                string
	}{
		{
			name: "return value forwarded",
			impl: Function{Name: "ReadValue", Return: "float", Params: []Param{{Type: "uint"}}},
			wrap: Function{Name: "LoadInput", Return: "float", Params: []Param{{Type: "uint", Modifier: ModifierIn}}},
			want: "float LoadInput(in uint P1) { return ReadValue_DI0_Buffer(P1); }\n",
		},
		{
			name: "void with namespace",
			impl: Function{Name: "WriteValue", Params: []Param{{Type: "uint"}, {Type: "float"}}},
			wrap: Function{Name: "Store", Params: []Param{{Type: "uint"}, {Type: "float"}}},
			namespace: "Out",
			want:      "namespace Out { void Store(uint P0, float P1) { WriteValue_DI0_Buffer(P0, P1); } }\n",
		},
		{
			name:     "override with truncation",
			impl:     Function{Name: "ReadNumThreads", Return: "uint3"},
			wrap:     Function{Name: "GetThreads", Return: "uint3", Params: []Param{{Type: "uint"}}},
			override: "Threads",
			want:     "uint3 Threads(uint P1) { return ReadNumThreads_DI0_Buffer(); }\n",
		},
		{
			name: "out parameter",
			impl: Function{Name: "ReadPair", Params: []Param{{Type: "float", Modifier: ModifierOut}}},
			wrap: Function{Name: "Pair", Params: []Param{{Type: "float", Modifier: ModifierOut}}},
			want: "void Pair(out float P0) { ReadPair_DI0_Buffer(P0); }\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HLSL.Shim(tt.impl, tt.wrap, "DI0_Buffer", tt.override, tt.namespace)
			if got != tt.want {
				t.Errorf("Shim() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestWGSLShim(t *testing.T) {
	tests := []struct {
		name                string
		impl, wrap          Function
		override, namespace string
		want                string
	}{
		{
			name: "return value forwarded",
			impl: Function{Name: "ReadValue", Return: "f32", Params: []Param{{Type: "u32"}}},
			wrap: Function{Name: "LoadInput", Return: "f32", Params: []Param{{Type: "u32"}}},
			want: "fn LoadInput(P1: u32) -> f32 { return ReadValue_DI1_Buffer(P1); }\n",
		},
		{
			name:      "namespace prefixes name",
			impl:      Function{Name: "WriteValue", Params: []Param{{Type: "u32"}, {Type: "f32"}}},
			wrap:      Function{Name: "Store", Params: []Param{{Type: "u32"}, {Type: "f32"}}},
			namespace: "Out",
			want:      "fn Out_Store(P0: u32, P1: f32) { WriteValue_DI1_Buffer(P0, P1); }\n",
		},
		{
			name: "inout becomes pointer",
			impl: Function{Name: "Accumulate", Params: []Param{{Type: "f32", Modifier: ModifierInOut}}},
			wrap: Function{Name: "Acc", Params: []Param{{Type: "f32", Modifier: ModifierInOut}}},
			want: "fn Acc(P0: ptr<function, f32>) { Accumulate_DI1_Buffer(P0); }\n",
		},
		{
			name:     "data interface accepts fewer inputs",
			impl:     Function{Name: "ReadValue", Return: "f32", Params: []Param{{Type: "u32"}}},
			wrap:     Function{Name: "Load", Return: "f32", Params: []Param{{Type: "u32"}, {Type: "u32"}}},
			override: "LoadFirst",
			want:     "fn LoadFirst(P1: u32, P2: u32) -> f32 { return ReadValue_DI1_Buffer(P1); }\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WGSL.Shim(tt.impl, tt.wrap, "DI1_Buffer", tt.override, tt.namespace)
			if got != tt.want {
				t.Errorf("Shim() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

// ===== Includes and definitions =====

func TestDialectIncludeAndDefine(t *testing.T) {
	if got := WGSL.Include("/a.wgsl"); got != "\n#include \"/a.wgsl\"\n" {
		t.Errorf("WGSL.Include = %q", got)
	}
	if got := WGSL.Define("N", "4u"); got != "const N = 4u;\n" {
		t.Errorf("WGSL.Define = %q", got)
	}
	if got := WGSL.Define("FLAG", ""); got != "const FLAG = true;\n" {
		t.Errorf("WGSL.Define flag = %q", got)
	}
	if got := HLSL.Define("N", "4"); got != "#define N 4\n" {
		t.Errorf("HLSL.Define = %q", got)
	}
}

func TestDialectByName(t *testing.T) {
	for _, name := range []string{"wgsl", "HLSL"} {
		d, err := DialectByName(name)
		if err != nil {
			t.Fatalf("DialectByName(%q) error: %v", name, err)
		}
		if !strings.EqualFold(d.Name(), name) {
			t.Errorf("DialectByName(%q).Name() = %q", name, d.Name())
		}
	}
	if _, err := DialectByName("glsl"); err == nil {
		t.Error("DialectByName(glsl) should fail")
	}
}

func TestFunctionString(t *testing.T) {
	f := Function{Name: "Write", Params: []Param{{Type: "u32", Modifier: ModifierIn}, {Type: "f32"}}}
	if got, want := f.String(), "void Write(in u32, f32)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
