package computegraph

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/gogpu/computegraph/backend"
	"github.com/gogpu/computegraph/internal/parallel"
	"github.com/gogpu/computegraph/shader"
)

// compileJob is one kernel compile of an update.
type compileJob struct {
	kernel    int
	name      string
	isDefault bool
	resource  *KernelResource
	build     *KernelSourceBuild
	compiler  backend.Compiler
	gen       uint64
	plan      *proxyPlan
}

// UpdateResources rebuilds and compiles every kernel for the runtime format
// and feature level.
//
// In synchronous mode the call returns when every compile has finished and
// the new render proxy is published. Otherwise it returns once the compiles
// are queued; the proxy is published when the last of them completes, and
// the kernel-compiled hook reports each result. The default kernel is always
// compiled synchronously.
//
// Compiles still in flight from a previous update are cancelled first.
// Compile failures are reported through the hook, not the returned error.
func (g *Graph) UpdateResources(sync bool) error {
	if err := g.ValidateGraph(); err != nil {
		Logger().Warn("computegraph: graph failed validation, resources not updated",
			"graph", g.Name, "error", err)
		return err
	}

	format, level := g.opts.runtimeFormat, g.opts.featureLevel
	c, err := g.compiler(format)
	if err != nil {
		return fmt.Errorf("computegraph: %s: %w", g.Name, err)
	}

	// Supersede the previous generation without holding g.mu while its jobs
	// drain, since their completions take g.mu.
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	g.generation++
	gen := g.generation
	old := g.takeTasksLocked()
	g.mu.Unlock()
	parallel.WaitAll(old...)

	d := g.opts.dialect
	if d == nil {
		d = c.Dialect()
	}

	builds := make(map[int]*KernelSourceBuild)
	var jobs []*compileJob
	var failed []int

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	if gen != g.generation {
		// A newer update took over.
		g.mu.Unlock()
		return nil
	}
	g.resizeResourcesLocked(format)
	for k, kernel := range g.Kernels {
		src := g.kernelSource(k)
		if src == nil {
			continue
		}
		r := g.resources[k].Resource(level)
		build, err := g.buildKernelSource(k, d, format)
		if err != nil {
			r.fail(nil, gen, KernelCompileResult{Format: format, FeatureLevel: level, Err: err, Diagnostics: []string{err.Error()}})
			failed = append(failed, k)
			continue
		}
		builds[k] = build
		if r.reusable(build.HashKey) {
			Logger().Debug("computegraph: kernel unchanged, reusing program",
				"graph", g.Name, "kernel", kernel.Name, "hash_key", build.HashKey)
			continue
		}
		r.begin(build, gen)
		jobs = append(jobs, &compileJob{
			kernel:    k,
			name:      kernel.Name,
			isDefault: src.IsDefault(),
			resource:  r,
			build:     build,
			compiler:  c,
			gen:       gen,
		})
	}

	plan := g.buildPlan(gen, level, builds)
	g.resetPendingLocked()
	for _, j := range jobs {
		j.plan = plan
		g.pending[j.kernel] = struct{}{}
	}
	pendingCompiles.Add(float64(len(jobs)))
	if len(g.pending) > 0 {
		g.openIdleLocked()
	}
	hook := g.onCompiled
	g.mu.Unlock()

	for _, k := range failed {
		g.reportFailure(k, g.resources[k], hook)
	}

	var tasks []*parallel.Task
	for _, j := range jobs {
		t := g.submit(j)
		if j.isDefault && !sync {
			_ = t.Wait()
			continue
		}
		tasks = append(tasks, t)
	}
	if sync {
		parallel.WaitAll(tasks...)
	}

	g.mu.Lock()
	if len(g.pending) == 0 && gen == g.generation {
		g.publishLocked(plan)
		g.closeIdleLocked()
	}
	g.mu.Unlock()
	return nil
}

// submit queues j on the compile pool. A closed pool runs it inline.
func (g *Graph) submit(j *compileJob) *parallel.Task {
	run := func(ctx context.Context) error {
		return g.runJob(ctx, j)
	}
	t := g.pool.Go(context.Background(), run)
	if errors.Is(t.Err(), parallel.ErrPoolClosed) {
		_ = run(context.Background())
		return t
	}
	j.resource.setTask(t, j.gen)
	return t
}

func (g *Graph) runJob(ctx context.Context, j *compileJob) error {
	prog, res, err := g.compileBuild(ctx, j.compiler, j.build, j.resource.level)
	if errors.Is(err, backend.ErrCancelled) {
		j.resource.abandon(j.gen)
		return err
	}
	g.completeJob(j, prog, res)
	return err
}

// compileBuild compiles every permutation of b through the program cache.
// A cancelled compile returns an error wrapping backend.ErrCancelled and an
// empty result.
func (g *Graph) compileBuild(ctx context.Context, c backend.Compiler, b *KernelSourceBuild, level shader.FeatureLevel) (*backend.Program, KernelCompileResult, error) {
	req := backend.Request{
		FriendlyName: b.FriendlyName,
		EntryPoint:   b.EntryPoint,
		GroupSize:    b.GroupSize,
		Source:       b.Source,
		Includes:     b.Includes(),
		Files:        g.files(),
		Definitions:  b.Definitions.Defines(),
	}
	key := backend.ProgramKey{Format: c.Format(), HashKey: b.HashKey}

	start := time.Now()
	prog, hit, err := g.opts.programCache.GetOrCompile(ctx, key, func(ctx context.Context) (*backend.Program, error) {
		return backend.CompileProgram(ctx, c, req, b.HashKey, b.Permutations)
	})
	if errors.Is(err, backend.ErrCancelled) {
		kernelCompilesTotal.WithLabelValues(key.Format, resultCancelled).Inc()
		return nil, KernelCompileResult{}, err
	}
	if !hit {
		kernelCompileDurationSeconds.WithLabelValues(key.Format).Observe(time.Since(start).Seconds())
	}

	res := KernelCompileResult{
		Success:      err == nil,
		Cached:       hit,
		Format:       key.Format,
		FeatureLevel: level,
		HashKey:      b.HashKey,
		Err:          err,
	}
	if err == nil {
		res.Diagnostics = prog.Diagnostics
	} else {
		var ce *backend.CompileError
		if errors.As(err, &ce) {
			res.Diagnostics = ce.Diagnostics
		}
		if len(res.Diagnostics) == 0 {
			res.Diagnostics = []string{err.Error()}
		}
	}
	countCompile(res)
	return prog, res, err
}

func countCompile(res KernelCompileResult) {
	result := resultSuccess
	switch {
	case !res.Success:
		result = resultFailure
	case res.Cached:
		result = resultCached
	}
	kernelCompilesTotal.WithLabelValues(res.Format, result).Inc()
}

// completeJob records the result of j, removes it from the pending set and
// publishes the proxy once the generation has no compiles left.
func (g *Graph) completeJob(j *compileJob, prog *backend.Program, res KernelCompileResult) {
	if !j.resource.finish(j.gen, prog, res) {
		return
	}

	g.mu.Lock()
	current := j.gen == g.generation
	if current {
		if _, ok := g.pending[j.kernel]; ok {
			delete(g.pending, j.kernel)
			pendingCompiles.Dec()
		}
		if len(g.pending) == 0 {
			g.publishLocked(j.plan)
			g.closeIdleLocked()
		}
	}
	hook := g.onCompiled
	g.mu.Unlock()

	if !res.Success {
		g.compileFailed(j.kernel, j.name, j.isDefault, res)
	} else {
		Logger().Debug("computegraph: kernel compiled",
			append(g.logAttrs(j.kernel),
				"format", res.Format,
				"cached", res.Cached,
				"variants", len(prog.Variants))...)
	}
	if hook != nil && current {
		hook(j.kernel, res)
	}
}

// reportFailure delivers a failure recorded before compiling.
func (g *Graph) reportFailure(k int, set ResourceSet, hook func(int, KernelCompileResult)) {
	r, ok := set.Lookup(g.opts.featureLevel)
	if !ok {
		return
	}
	res := r.Result()
	countCompile(res)
	src := g.kernelSource(k)
	g.compileFailed(k, g.Kernels[k].Name, src != nil && src.IsDefault(), res)
	if hook != nil {
		hook(k, res)
	}
}

func (g *Graph) compileFailed(k int, name string, isDefault bool, res KernelCompileResult) {
	if isDefault {
		g.opts.fatal(name, res.Err)
		return
	}
	Logger().Warn("computegraph: kernel failed to compile, keeping previous program",
		append(g.logAttrs(k),
			"format", res.Format,
			"feature_level", res.FeatureLevel.String(),
			"error", res.Err,
			"diagnostics", len(res.Diagnostics))...)
}

// takeTasksLocked detaches and cancels every runtime compile in flight.
func (g *Graph) takeTasksLocked() []*parallel.Task {
	var tasks []*parallel.Task
	for _, set := range g.resources {
		if set == nil {
			continue
		}
		for _, r := range set.Resources() {
			if t := r.takeTask(); t != nil {
				tasks = append(tasks, t)
			}
		}
	}
	return tasks
}

// resizeResourcesLocked matches the resource sets to the kernel list.
func (g *Graph) resizeResourcesLocked(format string) {
	for k := len(g.Kernels); k < len(g.resources); k++ {
		if g.resources[k] == nil {
			continue
		}
		for _, r := range g.resources[k].Resources() {
			r.invalidate()
		}
	}
	if len(g.resources) > len(g.Kernels) {
		g.resources = g.resources[:len(g.Kernels)]
	}
	for len(g.resources) < len(g.Kernels) {
		g.resources = append(g.resources, nil)
	}
	for k, set := range g.resources {
		if set == nil || !setHasFormat(set, format) {
			g.resources[k] = newResourceSet(format, g.opts.editorData)
		}
	}
}

func setHasFormat(set ResourceSet, format string) bool {
	for _, r := range set.Resources() {
		if r.format != format {
			return false
		}
	}
	return true
}

func (g *Graph) resetPendingLocked() {
	pendingCompiles.Sub(float64(len(g.pending)))
	clear(g.pending)
}

// openIdleLocked arms the channel WaitForCompilation blocks on. Waiters of
// a superseded generation keep waiting on the same channel.
func (g *Graph) openIdleLocked() {
	select {
	case <-g.idle:
		g.idle = make(chan struct{})
	default:
	}
}

func (g *Graph) closeIdleLocked() {
	select {
	case <-g.idle:
	default:
		close(g.idle)
	}
}

// HasPendingCompilation reports whether compiles of the current update are
// still running.
func (g *Graph) HasPendingCompilation() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending) > 0
}

// PendingKernelIndices returns the kernels still compiling, in index order.
func (g *Graph) PendingKernelIndices() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Sorted(maps.Keys(g.pending))
}

// OnKernelCompiled sets the hook called when a kernel of the current update
// finishes compiling. The hook may run on a compile worker.
func (g *Graph) OnKernelCompiled(fn func(kernelIndex int, result KernelCompileResult)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onCompiled = fn
}

// WaitForCompilation blocks until no compile is pending or ctx is done.
func (g *Graph) WaitForCompilation(ctx context.Context) error {
	g.mu.Lock()
	idle := g.idle
	g.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resource returns the runtime resource of kernel k.
func (g *Graph) Resource(k int) (*KernelResource, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if k < 0 || k >= len(g.resources) || g.resources[k] == nil {
		return nil, false
	}
	return g.resources[k].Lookup(g.opts.featureLevel)
}

// PostLoad compiles the graph after it was loaded, unless compilation is
// deferred.
func (g *Graph) PostLoad() error {
	if g.opts.deferred {
		return nil
	}
	return g.UpdateResources(true)
}

// Close cancels every outstanding compile, waits for the jobs to stop and
// releases the proxy through the render queue. The graph cannot be updated
// afterwards.
func (g *Graph) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.generation++
	tasks := g.takeTasksLocked()
	tasks = append(tasks, g.takeCookTasksLocked()...)
	g.mu.Unlock()

	parallel.WaitAll(tasks...)

	g.mu.Lock()
	for _, set := range g.resources {
		if set == nil {
			continue
		}
		for _, r := range set.Resources() {
			r.invalidate()
		}
	}
	g.resources = nil
	g.resetPendingLocked()
	g.closeIdleLocked()
	g.clearCookLocked()
	g.mu.Unlock()

	g.releaseProxy(g.proxy.Swap(nil))
	if g.ownQueue != nil {
		g.ownQueue.Close()
	}
	if g.ownPool {
		g.pool.Close()
	}
	Logger().Debug("computegraph: graph closed", "graph", g.Name)
	return nil
}
