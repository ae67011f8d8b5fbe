package backend

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a new compiler instance.
// Factories are registered via Register() and called by New().
type Factory func() Compiler

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register registers a compiler factory for an output format.
// This function is typically called from init() in compiler packages:
//
//	func init() {
//	    backend.Register("spirv", func() backend.Compiler { return New() })
//	}
//
// Register panics if factory is nil or the format is already registered.
func Register(format string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("backend: Register factory is nil")
	}
	if _, dup := factories[format]; dup {
		panic("backend: Register called twice for " + format)
	}
	factories[format] = factory
}

// Unregister removes a format from the registry.
// This is primarily useful for testing. Unknown formats are ignored.
func Unregister(format string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, format)
}

// New creates a compiler for format.
// The error wraps ErrUnknownFormat and hints at a forgotten import.
func New(format string) (Compiler, error) {
	registryMu.RLock()
	factory, ok := factories[format]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w %q (forgotten import?)", ErrUnknownFormat, format)
	}
	return factory(), nil
}

// MustNew is like New but panics on error.
func MustNew(format string) Compiler {
	c, err := New(format)
	if err != nil {
		panic(err)
	}
	return c
}

// Formats returns the registered formats, sorted.
func Formats() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a compiler is registered for format.
func IsRegistered(format string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[format]
	return ok
}
