package datainterface

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/gogpu/computegraph"
	"github.com/gogpu/computegraph/shader"
)

// Constant exposes one uniform value through ReadConstant.
type Constant struct {
	computegraph.DataInterfaceBase

	// Type is the WGSL type of the value. The default is f32.
	Type string
	// Size is the byte size of Type, used as the minimum binding size.
	Size uint64
}

func newConstant(attrs map[string]cty.Value) (computegraph.DataInterface, error) {
	if err := checkAttrs("constant", attrs, "type", "size"); err != nil {
		return nil, err
	}
	typ, err := stringAttr(attrs, "type", "f32")
	if err != nil {
		return nil, err
	}
	size, err := uintAttr(attrs, "size", 4)
	if err != nil {
		return nil, err
	}
	return &Constant{Type: typ, Size: uint64(size)}, nil
}

func (*Constant) ClassName() string { return "Constant" }

func (c *Constant) typ() string {
	if c.Type == "" {
		return "f32"
	}
	return c.Type
}

func (c *Constant) SupportedInputs() []shader.Function {
	return []shader.Function{{Name: "ReadConstant", Return: c.typ()}}
}

func (c *Constant) ShaderSource(scope shader.Scope) string {
	return fmt.Sprintf(`@group(%d) @binding(%d) var<uniform> %s: %s;
fn %s() -> %s { return %s; }
`,
		scope.Group, scope.MustBinding("Value"), scope.Name("Value"), c.typ(),
		scope.Name("ReadConstant"), c.typ(), scope.Name("Value"))
}

func (c *Constant) ShaderParameters(_ string, b *computegraph.ParameterBuilder) {
	b.AddUniform("Value", c.typ(), c.Size)
}

func (c *Constant) ShaderHash(key *shader.HashKey) {
	key.Append("Constant")
	key.Append(c.typ())
}

func (*Constant) CanSupportUnifiedDispatch() bool { return true }

func (*Constant) CreateDataProvider() (computegraph.DataProvider, error) {
	return &ConstantProvider{}, nil
}

// ConstantProvider backs a Constant. The bound object is the value.
type ConstantProvider struct {
	Value any
}

func (p *ConstantProvider) Initialize(_ computegraph.DataInterface, obj any, _, _ uint64) {
	p.Value = obj
}
