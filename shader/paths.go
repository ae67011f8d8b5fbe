package shader

import "strings"

const (
	// GeneratedRoot prefixes every virtual path produced at build time.
	GeneratedRoot = "/ComputeGraph/Generated/"

	// GeneratedDataInterfaceRoot prefixes virtual paths of data interface
	// sources emitted by the source builder. The unique prefix of the data
	// interface follows, then its own virtual path.
	GeneratedDataInterfaceRoot = GeneratedRoot + "DataInterface/"

	// GeneratedKernelPath holds the assembled kernel source during compilation.
	GeneratedKernelPath = GeneratedRoot + "ComputeKernel.wgsl"

	// KernelWrapperPath is the shared boilerplate every kernel compiles through.
	KernelWrapperPath = "/ComputeGraph/Private/ComputeKernel.wgsl"
)

// GeneratedPath returns the virtual path under which the source of the data
// interface uid is compiled. virtualPath must start with '/'.
func GeneratedPath(uid, virtualPath string) string {
	return GeneratedDataInterfaceRoot + uid + virtualPath
}

// StripGeneratedPrefix maps a generated data interface path back to the
// data interface's own virtual path. Other paths are returned unchanged with
// ok set to false.
func StripGeneratedPrefix(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, GeneratedDataInterfaceRoot)
	if !ok {
		return path, false
	}
	i := strings.IndexByte(rest, '/')
	if i < 0 {
		return path, false
	}
	return rest[i:], true
}

// IsGenerated reports whether path lives under GeneratedRoot.
func IsGenerated(path string) bool { return strings.HasPrefix(path, GeneratedRoot) }
