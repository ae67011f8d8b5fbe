package computegraph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/computegraph/backend"
	"github.com/gogpu/computegraph/internal/parallel"
	"github.com/gogpu/computegraph/shader"
)

// CookArgsVersion is the version of CookDependencyArgs this package writes.
const CookArgsVersion = 1

// TargetPlatform is a build target and the shader formats it ships.
type TargetPlatform struct {
	Name    string
	Formats []string
}

// cookPlatform is the build-time cache of one platform: one resource per
// kernel per format.
type cookPlatform struct {
	platform TargetPlatform
	entries  []*cookEntry
	logged   atomic.Bool
}

type cookEntry struct {
	kernel   int
	resource *KernelResource
}

func (p *cookPlatform) ready() bool {
	for _, e := range p.entries {
		if !e.resource.State().Finished() {
			return false
		}
	}
	return true
}

// BeginCacheForPlatform compiles every kernel for each format of platform
// into a cache separate from the runtime resources. It returns once the
// compiles are queued; the default kernel compiles before it returns.
// Beginning a platform again discards its previous cache.
//
// Formats without a registered compiler produce failed entries.
func (g *Graph) BeginCacheForPlatform(platform TargetPlatform) error {
	if err := g.ValidateGraph(); err != nil {
		return err
	}
	g.ClearCachedPlatformData(platform.Name)

	type formatBuild struct {
		compiler backend.Compiler
		builds   []*KernelSourceBuild
		errs     []error
	}
	results := make([]formatBuild, len(platform.Formats))

	var eg errgroup.Group
	for i, format := range platform.Formats {
		eg.Go(func() error {
			if g.isClosed() {
				return ErrClosed
			}
			c, err := g.compiler(format)
			if err != nil {
				Logger().Warn("computegraph: no compiler for cook format",
					"graph", g.Name, "platform", platform.Name, "format", format, "error", err)
				results[i].errs = []error{err}
				return nil
			}
			fb := formatBuild{
				compiler: c,
				builds:   make([]*KernelSourceBuild, len(g.Kernels)),
				errs:     make([]error, len(g.Kernels)),
			}
			for k := range g.Kernels {
				if g.kernelSource(k) == nil {
					continue
				}
				fb.builds[k], fb.errs[k] = g.buildKernelSource(k, c.Dialect(), format)
			}
			results[i] = fb
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	cp := &cookPlatform{platform: platform}
	var jobs []func() *parallel.Task
	var syncJobs []func() *parallel.Task

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	for i, format := range platform.Formats {
		fb := results[i]
		for k := range g.Kernels {
			src := g.kernelSource(k)
			if src == nil {
				continue
			}
			level := shader.FeatureLevelSM5
			if fb.compiler != nil {
				level = fb.compiler.FeatureLevel()
			}
			r := newKernelResource(format, level)
			cp.entries = append(cp.entries, &cookEntry{kernel: k, resource: r})

			var build *KernelSourceBuild
			err := fb.errs[0]
			if fb.compiler != nil {
				build, err = fb.builds[k], fb.errs[k]
			}
			if err != nil {
				res := KernelCompileResult{Format: format, FeatureLevel: level, Err: err, Diagnostics: []string{err.Error()}}
				r.fail(build, 0, res)
				countCompile(res)
				g.cookFailed(platform, k, src.IsDefault() && fb.compiler != nil, res)
				continue
			}

			r.begin(build, 0)
			submit := g.cookJob(cp, k, src.IsDefault(), fb.compiler, r)
			if src.IsDefault() {
				syncJobs = append(syncJobs, submit)
			} else {
				jobs = append(jobs, submit)
			}
		}
	}
	g.cook[platform.Name] = cp
	g.mu.Unlock()

	for _, submit := range syncJobs {
		_ = submit().Wait()
	}
	for _, submit := range jobs {
		submit()
	}

	if cp.ready() {
		g.cookReady(cp)
	}
	return nil
}

// cookJob returns a function that queues the compile of one cook entry.
func (g *Graph) cookJob(cp *cookPlatform, k int, isDefault bool, c backend.Compiler, r *KernelResource) func() *parallel.Task {
	build := r.Build()
	return func() *parallel.Task {
		run := func(ctx context.Context) error {
			prog, res, err := g.compileBuild(ctx, c, build, r.level)
			if errors.Is(err, backend.ErrCancelled) {
				r.abandon(0)
				return err
			}
			if !r.finish(0, prog, res) {
				return err
			}
			if !res.Success {
				g.cookFailed(cp.platform, k, isDefault, res)
			}
			if cp.ready() {
				g.cookReady(cp)
			}
			return err
		}
		t := g.pool.Go(context.Background(), run)
		if errors.Is(t.Err(), parallel.ErrPoolClosed) {
			_ = run(context.Background())
			return t
		}
		r.setTask(t, 0)
		return t
	}
}

func (g *Graph) cookFailed(platform TargetPlatform, k int, isDefault bool, res KernelCompileResult) {
	if isDefault {
		g.opts.fatal(g.Kernels[k].Name, res.Err)
		return
	}
	Logger().Warn("computegraph: kernel failed to cook",
		append(g.logAttrs(k),
			"platform", platform.Name,
			"format", res.Format,
			"error", res.Err)...)
}

// cookReady logs once per platform cache that every entry finished.
func (g *Graph) cookReady(cp *cookPlatform) {
	if !cp.logged.CompareAndSwap(false, true) {
		return
	}
	Logger().Info("computegraph: platform cache ready",
		"graph", g.Name, "platform", cp.platform.Name, "entries", len(cp.entries))
}

// IsCachedPlatformDataLoaded reports whether every compile of the platform
// cache has finished. It is false for platforms never begun and true for
// a platform with no formats.
func (g *Graph) IsCachedPlatformDataLoaded(name string) bool {
	g.mu.Lock()
	cp := g.cook[name]
	g.mu.Unlock()
	return cp != nil && cp.ready()
}

// CachedPlatformResources returns the cook entries of a platform in format
// then kernel order.
func (g *Graph) CachedPlatformResources(name string) []*KernelResource {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := g.cook[name]
	if cp == nil {
		return nil
	}
	out := make([]*KernelResource, 0, len(cp.entries))
	for _, e := range cp.entries {
		out = append(out, e.resource)
	}
	return out
}

// ClearCachedPlatformData cancels and drops the cache of one platform.
func (g *Graph) ClearCachedPlatformData(name string) {
	g.mu.Lock()
	cp := g.cook[name]
	delete(g.cook, name)
	g.mu.Unlock()
	if cp != nil {
		dropCookPlatform(cp)
	}
}

// ClearAllCachedPlatformData cancels and drops every platform cache.
func (g *Graph) ClearAllCachedPlatformData() {
	g.mu.Lock()
	platforms := g.cook
	g.cook = make(map[string]*cookPlatform)
	g.mu.Unlock()
	for _, cp := range platforms {
		dropCookPlatform(cp)
	}
}

func dropCookPlatform(cp *cookPlatform) {
	var tasks []*parallel.Task
	for _, e := range cp.entries {
		if t := e.resource.takeTask(); t != nil {
			tasks = append(tasks, t)
		}
	}
	parallel.WaitAll(tasks...)
	cp.logged.Store(true)
	for _, e := range cp.entries {
		e.resource.invalidate()
	}
}

// takeCookTasksLocked cancels every cook compile.
func (g *Graph) takeCookTasksLocked() []*parallel.Task {
	var tasks []*parallel.Task
	for _, cp := range g.cook {
		for _, e := range cp.entries {
			if t := e.resource.takeTask(); t != nil {
				tasks = append(tasks, t)
			}
		}
	}
	return tasks
}

func (g *Graph) clearCookLocked() {
	for _, cp := range g.cook {
		cp.logged.Store(true)
		for _, e := range cp.entries {
			e.resource.invalidate()
		}
	}
	clear(g.cook)
}

// CookDependencyArgs are the inputs of HashDependenciesForCook.
type CookDependencyArgs struct {
	Version            int
	ShaderFormats      []string
	ShaderVirtualPaths []string
}

// CookDependencies returns the hash arguments of the graph for platform:
// the kernel wrapper file, then the template file of every data interface
// that has one.
func (g *Graph) CookDependencies(platform TargetPlatform) CookDependencyArgs {
	args := CookDependencyArgs{
		Version:            CookArgsVersion,
		ShaderFormats:      slices.Clone(platform.Formats),
		ShaderVirtualPaths: []string{shader.KernelWrapperPath},
	}
	for _, di := range g.DataInterfaces {
		if di == nil {
			continue
		}
		if vp := di.ShaderVirtualPath(); vp != "" {
			args.ShaderVirtualPaths = append(args.ShaderVirtualPaths, vp)
		}
	}
	return args
}

// HashDependenciesForCook hashes the file hash of every path for every
// format. Each file hash covers the file's includes. A nil files uses
// shader.Builtin.
func HashDependenciesForCook(args CookDependencyArgs, files *shader.Files) (shader.Hash, error) {
	if args.Version != CookArgsVersion {
		return shader.Hash{}, fmt.Errorf("%w: %d", ErrCookArgsVersion, args.Version)
	}
	if files == nil {
		files = shader.Builtin
	}
	h := shader.NewHasher()
	for _, format := range args.ShaderFormats {
		for _, path := range args.ShaderVirtualPaths {
			fh, err := files.FileHash(path, format)
			if err != nil {
				return shader.Hash{}, fmt.Errorf("computegraph: cook dependency %s (%s): %w", path, format, err)
			}
			h.WriteHash(fh)
		}
	}
	return h.Sum(), nil
}
