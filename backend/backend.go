package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/computegraph/shader"
)

// MaxPermutations bounds the permutation space compiled for one kernel.
const MaxPermutations = 64

// Common back end errors.
var (
	// ErrUnknownFormat is returned when no compiler is registered for a format.
	ErrUnknownFormat = errors.New("backend: unknown format")

	// ErrCancelled is returned when a compile was cancelled before finishing.
	ErrCancelled = errors.New("backend: compilation cancelled")

	// ErrTooManyPermutations is returned when a permutation vector exceeds
	// MaxPermutations.
	ErrTooManyPermutations = errors.New("backend: too many permutations")
)

// Compiler turns an assembled kernel source into code for one format.
//
// Compile may be called concurrently from several goroutines.
type Compiler interface {
	// Format names the output, e.g. "spirv".
	Format() string

	// FeatureLevel is the capability tier the output targets.
	FeatureLevel() shader.FeatureLevel

	// Dialect is the source dialect the compiler consumes. Graph sources
	// compiled for this format are assembled in it.
	Dialect() shader.Dialect

	// Compile builds one permutation of a kernel.
	Compile(ctx context.Context, req *Request) (*Output, error)
}

// Request describes one permutation of a kernel to compile.
type Request struct {
	// FriendlyName labels the kernel in diagnostics ("Graph/Entry").
	FriendlyName string
	EntryPoint   string
	GroupSize    [3]uint32

	// Source is the assembled kernel source, served at
	// shader.GeneratedKernelPath while expanding.
	Source string

	// Includes holds generated and additional sources by virtual path.
	Includes map[string]string

	// Files resolves every other include; nil means shader.Builtin.
	Files *shader.Files

	// WrapperPath overrides shader.KernelWrapperPath.
	WrapperPath string

	// Definitions are emitted ahead of the wrapper, kernel definitions
	// first, then the values of this permutation.
	Definitions   []shader.Define
	PermutationID int
}

// Output is the result of compiling one permutation.
type Output struct {
	Code        []byte
	Diagnostics []string

	// Module is an optional device object created from Code, such as a
	// hal.ShaderModule. Its owner is the compiler that created it.
	Module any
}

// Expand assembles the full translation unit of the request in dialect d:
// definitions, group size constants, then the wrapper with every include
// resolved.
func (r *Request) Expand(d shader.Dialect) (string, error) {
	var b strings.Builder
	for _, def := range r.Definitions {
		b.WriteString(d.Define(def.Name, def.Value))
	}
	if r.GroupSize != [3]uint32{} {
		for i, axis := range [...]string{"X", "Y", "Z"} {
			b.WriteString(d.Define("THREADGROUP_SIZE_"+axis, strconv.FormatUint(uint64(max(r.GroupSize[i], 1)), 10)))
		}
	}
	wrapper := r.WrapperPath
	if wrapper == "" {
		wrapper = shader.KernelWrapperPath
	}
	b.WriteString(d.Include(wrapper))

	src, err := shader.Expand(b.String(), r.resolve)
	if err != nil {
		return "", fmt.Errorf("backend: %s: %w", r.FriendlyName, err)
	}
	return src, nil
}

func (r *Request) resolve(path string) (string, bool) {
	if path == shader.GeneratedKernelPath {
		return r.Source, true
	}
	if src, ok := r.Includes[path]; ok {
		return src, true
	}
	files := r.Files
	if files == nil {
		files = shader.Builtin
	}
	return files.Source(path)
}

// CompileError reports a failed permutation compile.
type CompileError struct {
	Format        string
	FriendlyName  string
	PermutationID int
	Diagnostics   []string
	Err           error
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("backend: %s compile of %s (permutation %d) failed: %v", e.Format, e.FriendlyName, e.PermutationID, e.Err)
	if len(e.Diagnostics) > 0 {
		msg += "\n" + strings.Join(e.Diagnostics, "\n")
	}
	return msg
}

func (e *CompileError) Unwrap() error { return e.Err }

// Variant is the compiled code of one permutation.
type Variant struct {
	PermutationID int
	Code          []byte
	Module        any
}

// Program is the immutable result of compiling every permutation of a
// kernel for one format.
type Program struct {
	Format      string
	HashKey     string
	EntryPoint  string
	Variants    []Variant
	Diagnostics []string
}

// Variant returns the variant for a permutation id.
func (p *Program) Variant(permutationID int) (*Variant, bool) {
	if p == nil {
		return nil, false
	}
	for i := range p.Variants {
		if p.Variants[i].PermutationID == permutationID {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// CodeSize returns the total size of all variants in bytes.
func (p *Program) CodeSize() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, v := range p.Variants {
		n += len(v.Code)
	}
	return n
}

// CompileProgram compiles every permutation of vec with c. base is used as
// the template request; its Definitions come before the permutation values.
func CompileProgram(ctx context.Context, c Compiler, base Request, hashKey string, vec *shader.PermutationVector) (*Program, error) {
	n := vec.NumPermutations()
	if n > MaxPermutations {
		return nil, fmt.Errorf("%w: %s has %d, limit %d", ErrTooManyPermutations, base.FriendlyName, n, MaxPermutations)
	}

	prog := &Program{
		Format:     c.Format(),
		HashKey:    hashKey,
		EntryPoint: base.EntryPoint,
		Variants:   make([]Variant, 0, n),
	}
	for id := range n {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCancelled, base.FriendlyName, err)
		}
		values, err := vec.Values(id)
		if err != nil {
			return nil, err
		}

		req := base
		req.Definitions = append(append([]shader.Define(nil), base.Definitions...), values...)
		req.PermutationID = id

		out, err := c.Compile(ctx, &req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrCancelled, base.FriendlyName, ctx.Err())
			}
			ce := &CompileError{Format: c.Format(), FriendlyName: base.FriendlyName, PermutationID: id, Err: err}
			if out != nil {
				ce.Diagnostics = out.Diagnostics
			}
			return nil, ce
		}
		prog.Variants = append(prog.Variants, Variant{PermutationID: id, Code: out.Code, Module: out.Module})
		prog.Diagnostics = append(prog.Diagnostics, out.Diagnostics...)
	}

	slogger().Debug("backend: program compiled",
		"kernel", base.FriendlyName,
		"format", prog.Format,
		"variants", len(prog.Variants),
		"bytes", prog.CodeSize())
	return prog, nil
}
