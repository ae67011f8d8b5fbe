package shader

import "maps"

// Scope is the naming and binding context of one data interface inside a
// kernel. Every symbol the data interface emits is suffixed with UID so the
// same interface type can be bound more than once.
type Scope struct {
	UID      string
	Group    uint32
	bindings map[string]uint32
}

// NewScope returns a scope whose local parameter names map to the given
// binding slots.
func NewScope(uid string, group uint32, bindings map[string]uint32) Scope {
	return Scope{UID: uid, Group: group, bindings: maps.Clone(bindings)}
}

// Name returns the prefixed symbol for a local name.
func (s Scope) Name(local string) string { return local + "_" + s.UID }

// Binding returns the binding slot assigned to a local parameter.
func (s Scope) Binding(local string) (uint32, bool) {
	b, ok := s.bindings[local]
	return b, ok
}

// MustBinding is like Binding but panics when local was never declared.
func (s Scope) MustBinding(local string) uint32 {
	b, ok := s.bindings[local]
	if !ok {
		panic("shader: parameter " + local + " not declared in scope " + s.UID)
	}
	return b
}
