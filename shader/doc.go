// Package shader holds the text-level building blocks used to assemble compute
// kernel sources: function signatures and the shims that bind them, dialects,
// definition and permutation sets, a virtual shader file registry with
// include-aware hashing, and the include preprocessor.
//
// The package does not parse or validate any shading language. Sources are
// treated as opaque text; only `#include "path"` lines are interpreted.
//
// # Dialects
//
// A [Dialect] decides how shims, includes and definitions are spelled. [WGSL]
// is the default and feeds the SPIR-V back end. [HLSL] keeps the namespace and
// in/out parameter conventions of HLSL-style kernels.
//
//	impl := shader.Function{Name: "ReadValue", Return: "f32", Params: []shader.Param{{Type: "u32"}}}
//	wrap := shader.Function{Name: "LoadInput", Return: "f32", Params: []shader.Param{{Type: "u32"}}}
//	src := shader.WGSL.Shim(impl, wrap, "DI1_Buffer", "", "")
//	// fn LoadInput(P1: u32) -> f32 { return ReadValue_DI1_Buffer(P1); }
package shader
