package shader

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/gogpu/computegraph/internal/cache"
)

// ErrInvalidPath is returned when registering a path that is not absolute.
var ErrInvalidPath = errors.New("shader: virtual path must start with '/'")

// fileHashLimit bounds the number of cached (path, format) digests.
const fileHashLimit = 1024

type fileHashKey struct {
	path   string
	format string
}

// Files is a registry of shader sources addressed by virtual path.
// Lookups fall back to the parent registries given to NewFiles.
//
// Files is safe for concurrent use.
type Files struct {
	mu      sync.RWMutex
	sources map[string]string
	parents []*Files
	hashes  *cache.Cache[fileHashKey, Hash]
}

// NewFiles returns an empty registry that falls back to parents in order.
func NewFiles(parents ...*Files) *Files {
	return &Files{
		sources: make(map[string]string),
		parents: slices.DeleteFunc(slices.Clone(parents), func(p *Files) bool { return p == nil }),
		hashes:  cache.New[fileHashKey, Hash](fileHashLimit),
	}
}

// Builtin holds the sources shipped with the module: the kernel wrapper and
// the templates of the built-in data interfaces.
var Builtin = NewFiles()

// Register stores source at path, replacing any previous content.
// Cached digests of this registry are discarded.
func (f *Files) Register(path, source string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	f.mu.Lock()
	f.sources[path] = source
	f.mu.Unlock()
	f.hashes.Clear()
	return nil
}

// MustRegister is like Register but panics on error. Intended for init.
func (f *Files) MustRegister(path, source string) {
	if err := f.Register(path, source); err != nil {
		panic(err)
	}
}

// Source returns the content stored at path.
func (f *Files) Source(path string) (string, bool) {
	f.mu.RLock()
	src, ok := f.sources[path]
	f.mu.RUnlock()
	if ok {
		return src, true
	}
	for _, p := range f.parents {
		if src, ok := p.Source(path); ok {
			return src, true
		}
	}
	return "", false
}

// Paths returns the paths registered directly in f, sorted.
func (f *Files) Paths() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	paths := make([]string, 0, len(f.sources))
	for p := range f.sources {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// FileHash returns the digest of the file at path as compiled for format.
// The digest covers the format name, the file content and the digests of
// every file it includes, so editing an included file changes the hash of
// every includer. Includes of generated paths are skipped; their content is
// hashed by whoever generates it.
func (f *Files) FileHash(path, format string) (Hash, error) {
	return f.fileHash(path, format, nil)
}

func (f *Files) fileHash(path, format string, stack []string) (Hash, error) {
	if slices.Contains(stack, path) {
		return Hash{}, fmt.Errorf("%w: %s -> %s", ErrIncludeCycle, strings.Join(stack, " -> "), path)
	}
	return f.hashes.GetOrCreate(fileHashKey{path: path, format: format}, func() (Hash, error) {
		src, ok := f.Source(path)
		if !ok {
			return Hash{}, fmt.Errorf("%w: %q", ErrIncludeNotFound, path)
		}
		h := NewHasher()
		h.WriteString(format)
		h.WriteString(src)
		stack := append(slices.Clone(stack), path)
		for _, inc := range ParseIncludes(src) {
			if IsGenerated(inc) {
				continue
			}
			sub, err := f.fileHash(inc, format, stack)
			if err != nil {
				return Hash{}, err
			}
			h.WriteHash(sub)
		}
		return h.Sum(), nil
	})
}
