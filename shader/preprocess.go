package shader

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrIncludeNotFound is returned when an included path cannot be resolved.
	ErrIncludeNotFound = errors.New("shader: include not found")

	// ErrIncludeCycle is returned when a file includes itself, directly or
	// through other files.
	ErrIncludeCycle = errors.New("shader: include cycle")
)

// Resolver returns the source text stored at a virtual path.
type Resolver func(path string) (string, bool)

// ParseIncludes returns the paths of every `#include "path"` or
// `#include <path>` line of src, in order.
func ParseIncludes(src string) []string {
	var paths []string
	for line := range strings.Lines(src) {
		if p, ok := includePath(line); ok {
			paths = append(paths, p)
		}
	}
	return paths
}

func includePath(line string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "#include")
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 {
		return "", false
	}
	var closing byte
	switch rest[0] {
	case '"':
		closing = '"'
	case '<':
		closing = '>'
	default:
		return "", false
	}
	end := strings.IndexByte(rest[1:], closing)
	if end < 0 {
		return "", false
	}
	return rest[1 : end+1], true
}

// Expand replaces every include line of src, recursively, with the resolved
// file. Each path is expanded once; later includes of the same path are
// dropped. Expanded regions are delimited by comments naming the original
// virtual path, with generated data interface prefixes stripped.
func Expand(src string, resolve Resolver) (string, error) {
	e := expander{resolve: resolve, done: make(map[string]struct{})}
	var b strings.Builder
	if err := e.expand(&b, src); err != nil {
		return "", err
	}
	return b.String(), nil
}

type expander struct {
	resolve Resolver
	done    map[string]struct{}
	stack   []string
}

func (e *expander) expand(b *strings.Builder, src string) error {
	for line := range strings.Lines(src) {
		path, ok := includePath(line)
		if !ok {
			b.WriteString(line)
			continue
		}
		if slices.Contains(e.stack, path) {
			return fmt.Errorf("%w: %s -> %s", ErrIncludeCycle, strings.Join(e.stack, " -> "), path)
		}
		if _, seen := e.done[path]; seen {
			continue
		}
		text, found := e.resolve(path)
		if !found {
			if len(e.stack) > 0 {
				return fmt.Errorf("%w: %q (included from %q)", ErrIncludeNotFound, path, e.stack[len(e.stack)-1])
			}
			return fmt.Errorf("%w: %q", ErrIncludeNotFound, path)
		}

		display, _ := StripGeneratedPrefix(path)
		b.WriteString("// begin include \"" + display + "\"\n")
		e.stack = append(e.stack, path)
		if err := e.expand(b, text); err != nil {
			return err
		}
		e.stack = e.stack[:len(e.stack)-1]
		e.done[path] = struct{}{}
		if !strings.HasSuffix(text, "\n") && text != "" {
			b.WriteByte('\n')
		}
		b.WriteString("// end include \"" + display + "\"\n")
	}
	return nil
}
