package computegraph

import "errors"

// Common graph errors.
var (
	// ErrInvalidGraph is returned when a graph violates its structural
	// invariants, such as a kernel without exactly one execution edge.
	ErrInvalidGraph = errors.New("computegraph: invalid graph")

	// ErrKernelIndex is returned for a kernel index outside the graph.
	ErrKernelIndex = errors.New("computegraph: kernel index out of range")

	// ErrNoKernelSource is returned when building a kernel that has no source.
	ErrNoKernelSource = errors.New("computegraph: kernel has no source")

	// ErrBindingIndex is returned for a binding group index outside the graph.
	ErrBindingIndex = errors.New("computegraph: binding index out of range")

	// ErrBindingObject is returned when a binding group rejects the object
	// offered for it.
	ErrBindingObject = errors.New("computegraph: binding object rejected")

	// ErrClosed is returned by operations on a closed graph.
	ErrClosed = errors.New("computegraph: graph closed")

	// ErrCookArgsVersion is returned when hashing cook dependency arguments
	// of an unsupported version.
	ErrCookArgsVersion = errors.New("computegraph: unsupported cook dependency args version")
)
