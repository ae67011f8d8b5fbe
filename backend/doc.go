// Package backend defines the compiler back ends that turn an assembled
// kernel source into a compiled program, plus the cache shared by every
// graph that compiles through them.
//
// # Registration
//
// Back ends are registered by output format from init functions, following
// the database/sql driver pattern:
//
//	import _ "github.com/gogpu/computegraph/backend/spirv" // registers "spirv"
//
//	c, err := backend.New("spirv")
//
// # Programs
//
// [CompileProgram] compiles one [Variant] per permutation of a kernel's
// permutation vector and bundles them into an immutable [Program]. A
// [ProgramCache] keyed by (format, hash key) serves identical compiles from
// memory and collapses concurrent duplicates into one compile.
package backend
