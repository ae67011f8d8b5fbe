package shader

import (
	"fmt"
	"sort"
	"strings"
)

// Dialect spells the generated glue code for one family of shading languages.
type Dialect interface {
	// Name identifies the dialect ("wgsl", "hlsl").
	Name() string

	// Shim returns a wrapper with the signature of wrap whose body calls the
	// uid-prefixed impl function. Only the leading parameters impl accepts are
	// forwarded. nameOverride replaces wrap.Name when non-empty; namespace
	// scopes the wrapper when non-empty.
	Shim(impl, wrap Function, uid, nameOverride, namespace string) string

	// Include returns a line that pulls in the file at a virtual path.
	Include(path string) string

	// Define returns the declaration of a compile-time definition.
	Define(name, value string) string
}

var (
	// HLSL emits HLSL-style glue with namespaces and in/out/inout modifiers.
	HLSL Dialect = hlslDialect{}

	// WGSL emits WGSL glue. Namespaces become name prefixes and out/inout
	// parameters become function-space pointers.
	WGSL Dialect = wgslDialect{}
)

var dialects = map[string]Dialect{
	HLSL.Name(): HLSL,
	WGSL.Name(): WGSL,
}

// DialectByName looks up a built-in dialect.
func DialectByName(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		names := make([]string, 0, len(dialects))
		for n := range dialects {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("shader: unknown dialect %q (have %s)", name, strings.Join(names, ", "))
	}
	return d, nil
}

func includeLine(path string) string {
	return "\n#include \"" + path + "\"\n"
}

func forwardArgs(b *strings.Builder, impl, wrap Function) {
	for i := range forwardCount(impl, wrap) {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(paramName(wrap, i))
	}
}

// ===== HLSL =====

type hlslDialect struct{}

func (hlslDialect) Name() string { return "hlsl" }

func (hlslDialect) Shim(impl, wrap Function, uid, nameOverride, namespace string) string {
	var b strings.Builder
	if namespace != "" {
		b.WriteString("namespace ")
		b.WriteString(namespace)
		b.WriteString(" { ")
	}

	if wrap.HasReturn() {
		b.WriteString(wrap.Return)
	} else {
		b.WriteString("void")
	}
	b.WriteByte(' ')
	if nameOverride != "" {
		b.WriteString(nameOverride)
	} else {
		b.WriteString(wrap.Name)
	}
	b.WriteByte('(')
	for i, p := range wrap.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if m := p.Modifier.String(); m != "" {
			b.WriteString(m)
			b.WriteByte(' ')
		}
		b.WriteString(p.Type)
		b.WriteByte(' ')
		b.WriteString(paramName(wrap, i))
	}
	b.WriteString(") { ")

	if wrap.HasReturn() {
		b.WriteString("return ")
	}
	b.WriteString(ImplName(impl, uid))
	b.WriteByte('(')
	forwardArgs(&b, impl, wrap)
	b.WriteString(");")

	if namespace != "" {
		b.WriteString(" }")
	}
	b.WriteString(" }\n")
	return b.String()
}

func (hlslDialect) Include(path string) string { return includeLine(path) }

func (hlslDialect) Define(name, value string) string {
	if value == "" {
		return "#define " + name + "\n"
	}
	return "#define " + name + " " + value + "\n"
}

// ===== WGSL =====

type wgslDialect struct{}

func (wgslDialect) Name() string { return "wgsl" }

func (wgslDialect) Shim(impl, wrap Function, uid, nameOverride, namespace string) string {
	name := wrap.Name
	if nameOverride != "" {
		name = nameOverride
	}
	if namespace != "" {
		name = namespace + "_" + name
	}

	var b strings.Builder
	b.WriteString("fn ")
	b.WriteString(name)
	b.WriteByte('(')
	for i, p := range wrap.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(paramName(wrap, i))
		b.WriteString(": ")
		switch p.Modifier {
		case ModifierOut, ModifierInOut:
			b.WriteString("ptr<function, ")
			b.WriteString(p.Type)
			b.WriteByte('>')
		default:
			b.WriteString(p.Type)
		}
	}
	b.WriteByte(')')
	if wrap.HasReturn() {
		b.WriteString(" -> ")
		b.WriteString(wrap.Return)
	}
	b.WriteString(" { ")
	if wrap.HasReturn() {
		b.WriteString("return ")
	}
	b.WriteString(ImplName(impl, uid))
	b.WriteByte('(')
	forwardArgs(&b, impl, wrap)
	b.WriteString("); }\n")
	return b.String()
}

func (wgslDialect) Include(path string) string { return includeLine(path) }

// Define declares a module-scope constant. Flag definitions without a value
// become true.
func (wgslDialect) Define(name, value string) string {
	if value == "" {
		value = "true"
	}
	return "const " + name + " = " + value + ";\n"
}
