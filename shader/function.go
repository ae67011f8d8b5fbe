package shader

import (
	"strconv"
	"strings"
)

// ParamModifier is the direction of a function parameter.
type ParamModifier uint8

const (
	// ModifierNone passes the parameter by value with no explicit direction.
	ModifierNone ParamModifier = iota
	// ModifierIn marks an input parameter.
	ModifierIn
	// ModifierOut marks an output parameter.
	ModifierOut
	// ModifierInOut marks a parameter that is read and written.
	ModifierInOut
)

// String returns the HLSL keyword for the modifier.
func (m ParamModifier) String() string {
	switch m {
	case ModifierIn:
		return "in"
	case ModifierOut:
		return "out"
	case ModifierInOut:
		return "inout"
	default:
		return ""
	}
}

// ParseParamModifier converts "in", "out" or "inout" to a modifier.
// The empty string yields ModifierNone.
func ParseParamModifier(s string) (ParamModifier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ModifierNone, true
	case "in":
		return ModifierIn, true
	case "out":
		return ModifierOut, true
	case "inout":
		return ModifierInOut, true
	}
	return ModifierNone, false
}

// Param is one typed parameter of a Function.
type Param struct {
	Type     string
	Modifier ParamModifier
}

// Function is a typed function signature. An empty Return means the
// function returns nothing.
type Function struct {
	Name   string
	Return string
	Params []Param
}

// HasReturn reports whether the function returns a value.
func (f Function) HasReturn() bool { return f.Return != "" }

// String formats the signature for diagnostics, e.g. "f32 ReadValue(u32)".
func (f Function) String() string {
	var b strings.Builder
	if f.HasReturn() {
		b.WriteString(f.Return)
	} else {
		b.WriteString("void")
	}
	b.WriteByte(' ')
	b.WriteString(f.Name)
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if m := p.Modifier.String(); m != "" {
			b.WriteString(m)
			b.WriteByte(' ')
		}
		b.WriteString(p.Type)
	}
	b.WriteByte(')')
	return b.String()
}

// paramName returns the shim parameter name for params[i]. Numbering starts
// at 1 when the wrapper returns a value, leaving P0 for the result.
func paramName(wrap Function, i int) string {
	if wrap.HasReturn() {
		i++
	}
	return "P" + strconv.Itoa(i)
}

// forwardCount is how many leading wrapper parameters a shim passes to the
// implementation function.
func forwardCount(impl, wrap Function) int {
	return min(len(impl.Params), len(wrap.Params))
}

// ImplName is the prefixed name of a data interface function.
func ImplName(impl Function, uid string) string {
	return impl.Name + "_" + uid
}
