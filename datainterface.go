package computegraph

import (
	"strconv"

	"github.com/gogpu/computegraph/shader"
)

// DataInterface adapts an external data source to the kernels of a graph.
// It declares the functions it can satisfy and contributes the shader code,
// definitions, permutations and parameters those functions need.
//
// Embed DataInterfaceBase to inherit defaults for the optional hooks.
type DataInterface interface {
	// ClassName names the interface type. It is part of every symbol the
	// interface emits, so it must be a valid identifier.
	ClassName() string

	// SupportedInputs lists the functions kernels may read through.
	SupportedInputs() []shader.Function
	// SupportedOutputs lists the functions kernels may write through.
	SupportedOutputs() []shader.Function

	// ShaderVirtualPath returns the virtual path of the interface's own
	// template file, or "" when its code is emitted inline.
	ShaderVirtualPath() string
	// ShaderSource returns the interface's code with every symbol suffixed
	// through scope.Name and its parameters bound through scope.
	ShaderSource(scope shader.Scope) string
	// StructDeclarations appends declarations of structs not yet in seen,
	// recording them in seen.
	StructDeclarations(seen map[string]struct{}, out []string) []string
	// Defines adds compile-time definitions.
	Defines(defs *shader.DefinitionSet)
	// Permutations adds permutation options.
	Permutations(vec *shader.PermutationVector)
	// ShaderHash appends everything that affects the compiled code but is
	// not visible in ShaderSource, such as the template file hash.
	ShaderHash(key *shader.HashKey)
	// ShaderParameters declares the interface's parameters through b.
	ShaderParameters(uid string, b *ParameterBuilder)

	// IsExecutionInterface reports whether the interface drives the
	// dispatch shape of the kernels bound to it.
	IsExecutionInterface() bool
	// CanSupportUnifiedDispatch reports whether the interface can be read
	// by a single dispatch covering all of its data.
	CanSupportUnifiedDispatch() bool
	RequiresReadback() bool
	RequiresPreSubmitCall() bool
	RequiresPostSubmitCall() bool

	// CreateDataProvider returns the runtime object backing the interface
	// for one bound object.
	CreateDataProvider() (DataProvider, error)
}

// DataProvider backs a DataInterface for one bound external object.
type DataProvider interface {
	// Initialize binds the provider. inputMask and outputMask have bit i set
	// when the supported input or output function i is connected.
	Initialize(di DataInterface, bindingObject any, inputMask, outputMask uint64)
}

// DataInterfaceBase provides defaults for the optional DataInterface hooks.
type DataInterfaceBase struct{}

func (DataInterfaceBase) SupportedInputs() []shader.Function  { return nil }
func (DataInterfaceBase) SupportedOutputs() []shader.Function { return nil }
func (DataInterfaceBase) ShaderVirtualPath() string           { return "" }
func (DataInterfaceBase) ShaderSource(shader.Scope) string    { return "" }

func (DataInterfaceBase) StructDeclarations(_ map[string]struct{}, out []string) []string {
	return out
}

func (DataInterfaceBase) Defines(*shader.DefinitionSet)             {}
func (DataInterfaceBase) Permutations(*shader.PermutationVector)    {}
func (DataInterfaceBase) ShaderHash(*shader.HashKey)                {}
func (DataInterfaceBase) ShaderParameters(string, *ParameterBuilder) {}
func (DataInterfaceBase) IsExecutionInterface() bool                { return false }
func (DataInterfaceBase) CanSupportUnifiedDispatch() bool           { return false }
func (DataInterfaceBase) RequiresReadback() bool                    { return false }
func (DataInterfaceBase) RequiresPreSubmitCall() bool               { return false }
func (DataInterfaceBase) RequiresPostSubmitCall() bool              { return false }

func (DataInterfaceBase) CreateDataProvider() (DataProvider, error) { return nil, nil }

// UniqueDataInterfaceName returns the symbol suffix of the data interface at
// index: "DI<index>_<ClassName>".
func UniqueDataInterfaceName(di DataInterface, index int) string {
	return "DI" + strconv.Itoa(index) + "_" + di.ClassName()
}
