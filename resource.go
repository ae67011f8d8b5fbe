package computegraph

import (
	"fmt"
	"sync"

	"github.com/gogpu/computegraph/backend"
	"github.com/gogpu/computegraph/internal/parallel"
	"github.com/gogpu/computegraph/shader"
)

// ResourceState is the lifecycle state of a KernelResource.
type ResourceState uint8

const (
	// ResourceUncompiled has never been submitted.
	ResourceUncompiled ResourceState = iota
	// ResourceCompiling has a compile in flight.
	ResourceCompiling
	// ResourceCompiled holds the program of its current source.
	ResourceCompiled
	// ResourceFailed could not compile its current source. It keeps the
	// program of the last successful compile, if any.
	ResourceFailed
	// ResourceInvalidated was released by teardown or replaced.
	ResourceInvalidated
)

func (s ResourceState) String() string {
	switch s {
	case ResourceUncompiled:
		return "uncompiled"
	case ResourceCompiling:
		return "compiling"
	case ResourceCompiled:
		return "compiled"
	case ResourceFailed:
		return "failed"
	case ResourceInvalidated:
		return "invalidated"
	default:
		return fmt.Sprintf("ResourceState(%d)", s)
	}
}

// Finished reports whether no compile is outstanding in state s.
func (s ResourceState) Finished() bool {
	return s == ResourceCompiled || s == ResourceFailed || s == ResourceInvalidated
}

// KernelCompileResult is delivered to the kernel-compiled hook.
type KernelCompileResult struct {
	Success bool
	// Cached is set when the program came from the program cache.
	Cached       bool
	Format       string
	FeatureLevel shader.FeatureLevel
	HashKey      string
	Diagnostics  []string
	Err          error
}

// KernelResource is the compiled program of one kernel for one target.
// At most one compile is in flight per resource.
type KernelResource struct {
	format string
	level  shader.FeatureLevel

	mu         sync.Mutex
	state      ResourceState
	generation uint64
	build      *KernelSourceBuild
	program    *backend.Program
	task       *parallel.Task
	result     KernelCompileResult
}

func newKernelResource(format string, level shader.FeatureLevel) *KernelResource {
	return &KernelResource{format: format, level: level}
}

// Format returns the compiler format of the resource.
func (r *KernelResource) Format() string { return r.format }

// FeatureLevel returns the feature level of the resource.
func (r *KernelResource) FeatureLevel() shader.FeatureLevel { return r.level }

// State returns the lifecycle state.
func (r *KernelResource) State() ResourceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Program returns the last successfully compiled program or nil.
func (r *KernelResource) Program() *backend.Program {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.program
}

// Build returns the source most recently submitted for compilation.
func (r *KernelResource) Build() *KernelSourceBuild {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.build
}

// HashKey returns the hash key of the submitted source.
func (r *KernelResource) HashKey() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.build == nil {
		return ""
	}
	return r.build.HashKey
}

// Result returns the outcome of the last finished compile.
func (r *KernelResource) Result() KernelCompileResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// takeTask detaches and cancels the in-flight compile, if any. The
// resource is invalidated since a queued job may be skipped without running.
func (r *KernelResource) takeTask() *parallel.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.task
	r.task = nil
	if t != nil {
		t.Cancel()
		if r.state == ResourceCompiling {
			r.state = ResourceInvalidated
		}
	}
	return t
}

// abandon invalidates the resource when the compile of generation gen was
// cancelled before it could finish.
func (r *KernelResource) abandon(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation == gen && r.state == ResourceCompiling {
		r.task = nil
		r.state = ResourceInvalidated
	}
}

// begin moves the resource to Compiling for build in generation gen.
func (r *KernelResource) begin(build *KernelSourceBuild, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.build = build
	r.generation = gen
	r.state = ResourceCompiling
}

func (r *KernelResource) setTask(t *parallel.Task, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation == gen && r.state == ResourceCompiling {
		r.task = t
		return
	}
	// Superseded or already finished.
	t.Cancel()
}

// reusable reports whether the resource already holds the program of a
// source with hashKey.
func (r *KernelResource) reusable(hashKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == ResourceCompiled && r.build != nil && r.build.HashKey == hashKey && r.program != nil
}

// finish records the outcome of the compile of generation gen. It reports
// false when the compile was superseded.
func (r *KernelResource) finish(gen uint64, prog *backend.Program, res KernelCompileResult) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen || r.state != ResourceCompiling {
		return false
	}
	r.task = nil
	r.result = res
	if res.Success {
		r.program = prog
		r.state = ResourceCompiled
	} else {
		r.state = ResourceFailed
	}
	return true
}

// fail records a failure that happened before a compile could start.
func (r *KernelResource) fail(build *KernelSourceBuild, gen uint64, res KernelCompileResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.build = build
	r.generation = gen
	r.task = nil
	r.result = res
	r.state = ResourceFailed
}

func (r *KernelResource) invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = ResourceInvalidated
	r.task = nil
}

// ResourceSet stores the resources of one kernel.
type ResourceSet interface {
	// Resource returns the resource for level, creating it if needed.
	Resource(level shader.FeatureLevel) *KernelResource
	// Lookup returns the resource for level if one exists.
	Lookup(level shader.FeatureLevel) (*KernelResource, bool)
	// Resources returns every resource held.
	Resources() []*KernelResource
}

// newResourceSet returns the editor table or the single runtime slot.
func newResourceSet(format string, editor bool) ResourceSet {
	if editor {
		return &editorResources{format: format}
	}
	return &runtimeResources{format: format}
}

// editorResources keeps one resource per feature level.
type editorResources struct {
	format string
	table  [shader.NumFeatureLevels]*KernelResource
}

func (s *editorResources) Resource(level shader.FeatureLevel) *KernelResource {
	if !level.Valid() {
		level = shader.FeatureLevelSM5
	}
	if s.table[level] == nil {
		s.table[level] = newKernelResource(s.format, level)
	}
	return s.table[level]
}

func (s *editorResources) Lookup(level shader.FeatureLevel) (*KernelResource, bool) {
	if !level.Valid() || s.table[level] == nil {
		return nil, false
	}
	return s.table[level], true
}

func (s *editorResources) Resources() []*KernelResource {
	var out []*KernelResource
	for _, r := range s.table {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// runtimeResources keeps a single resource. Asking for another level
// replaces it.
type runtimeResources struct {
	format string
	slot   *KernelResource
}

func (s *runtimeResources) Resource(level shader.FeatureLevel) *KernelResource {
	if s.slot != nil && s.slot.level == level {
		return s.slot
	}
	if s.slot != nil {
		s.slot.takeTask()
		s.slot.invalidate()
	}
	s.slot = newKernelResource(s.format, level)
	return s.slot
}

func (s *runtimeResources) Lookup(level shader.FeatureLevel) (*KernelResource, bool) {
	if s.slot == nil || s.slot.level != level {
		return nil, false
	}
	return s.slot, true
}

func (s *runtimeResources) Resources() []*KernelResource {
	if s.slot == nil {
		return nil
	}
	return []*KernelResource{s.slot}
}
