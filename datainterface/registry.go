package datainterface

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/gogpu/computegraph"
)

// ErrUnknownType is returned when no factory is registered for a type.
var ErrUnknownType = errors.New("datainterface: unknown type")

// ErrInvalidAttribute is returned when a factory rejects an attribute.
var ErrInvalidAttribute = errors.New("datainterface: invalid attribute")

// Factory creates a data interface from loader attributes.
type Factory func(attrs map[string]cty.Value) (computegraph.DataInterface, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

func init() {
	Register("execution", newExecution)
	Register("buffer", newBuffer)
	Register("constant", newConstant)
}

// Register registers a factory under a type name.
// Register panics if factory is nil or the name is already registered.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("datainterface: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("datainterface: Register called twice for " + name)
	}
	factories[name] = factory
}

// New creates a data interface of the named type.
func New(name string, attrs map[string]cty.Value) (computegraph.DataInterface, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w %q (forgotten import?)", ErrUnknownType, name)
	}
	return factory(attrs)
}

// Types returns the registered type names, sorted.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// stringAttr reads an optional string attribute.
func stringAttr(attrs map[string]cty.Value, name, def string) (string, error) {
	v, ok := attrs[name]
	if !ok || v.IsNull() {
		return def, nil
	}
	if v.Type() != cty.String {
		return "", fmt.Errorf("%w: %s must be a string, got %s", ErrInvalidAttribute, name, v.Type().FriendlyName())
	}
	return v.AsString(), nil
}

// boolAttr reads an optional bool attribute.
func boolAttr(attrs map[string]cty.Value, name string) (bool, error) {
	v, ok := attrs[name]
	if !ok || v.IsNull() {
		return false, nil
	}
	if v.Type() != cty.Bool {
		return false, fmt.Errorf("%w: %s must be a bool, got %s", ErrInvalidAttribute, name, v.Type().FriendlyName())
	}
	return v.True(), nil
}

// uintAttr reads an optional non-negative whole number attribute.
func uintAttr(attrs map[string]cty.Value, name string, def uint32) (uint32, error) {
	v, ok := attrs[name]
	if !ok || v.IsNull() {
		return def, nil
	}
	if v.Type() != cty.Number {
		return 0, fmt.Errorf("%w: %s must be a number, got %s", ErrInvalidAttribute, name, v.Type().FriendlyName())
	}
	bf := v.AsBigFloat()
	n, acc := bf.Uint64()
	if !bf.IsInt() || acc != 0 || n > 1<<32-1 {
		return 0, fmt.Errorf("%w: %s must be a whole number in uint32 range", ErrInvalidAttribute, name)
	}
	return uint32(n), nil
}

// checkAttrs rejects attributes a factory does not know.
func checkAttrs(kind string, attrs map[string]cty.Value, known ...string) error {
	for name := range attrs {
		if !slices.Contains(known, name) {
			return fmt.Errorf("%w: %s has no attribute %q", ErrInvalidAttribute, kind, name)
		}
	}
	return nil
}
