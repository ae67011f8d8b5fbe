package computegraph

import (
	"os"

	"github.com/gogpu/computegraph/backend"
	"github.com/gogpu/computegraph/internal/parallel"
	"github.com/gogpu/computegraph/shader"
)

// DefaultRuntimeFormat is the format runtime resources compile to.
const DefaultRuntimeFormat = "spirv"

// Option configures a Graph during creation.
//
// Example:
//
//	g := computegraph.NewGraph("Deformer",
//	    computegraph.WithRuntimeFormat("wgsl"),
//	    computegraph.WithEditorData(true),
//	)
type Option func(*options)

// FatalHandler is called when the default kernel fails to compile. The
// default handler logs at Error level and exits the process.
type FatalHandler func(kernel string, err error)

// RenderQueue is the execution engine's own command queue. Published render
// proxies are released by enqueuing onto it.
type RenderQueue interface {
	Enqueue(fn func())
}

// CompilePool runs compile jobs. One pool can be shared by many graphs.
type CompilePool struct {
	pool *parallel.WorkerPool
}

// NewCompilePool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewCompilePool(workers int) *CompilePool {
	return &CompilePool{pool: parallel.NewWorkerPool(workers)}
}

// Workers returns the number of workers of the pool.
func (p *CompilePool) Workers() int { return p.pool.Workers() }

// Close waits for queued compiles and stops the workers.
func (p *CompilePool) Close() { p.pool.Close() }

// defaultProgramCache is shared by every graph that does not bring its own.
var defaultProgramCache = backend.NewProgramCache(0)

// options holds optional configuration for Graph creation.
type options struct {
	name          string
	runtimeFormat string
	featureLevel  shader.FeatureLevel
	editorData    bool
	workers       int
	pool          *CompilePool
	renderQueue   RenderQueue
	files         *shader.Files
	programCache  *backend.ProgramCache
	fatal         FatalHandler
	deferred      bool
	dialect       shader.Dialect
	compilers     map[string]backend.Compiler
}

// defaultOptions returns the default graph options.
func defaultOptions() options {
	return options{
		runtimeFormat: DefaultRuntimeFormat,
		featureLevel:  shader.FeatureLevelSM5,
		programCache:  defaultProgramCache,
		fatal:         exitOnFatal,
	}
}

func exitOnFatal(kernel string, err error) {
	Logger().Error("computegraph: default kernel failed to compile", "kernel", kernel, "error", err)
	os.Exit(1)
}

// WithName overrides the name given to NewGraph.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithRuntimeFormat selects the compiler format for runtime resources.
func WithRuntimeFormat(format string) Option {
	return func(o *options) {
		o.runtimeFormat = format
	}
}

// WithFeatureLevel sets the feature level runtime resources are keyed by.
func WithFeatureLevel(level shader.FeatureLevel) Option {
	return func(o *options) {
		o.featureLevel = level
	}
}

// WithEditorData keeps one runtime resource per feature level instead of a
// single slot, so switching preview levels does not discard programs.
func WithEditorData(enabled bool) Option {
	return func(o *options) {
		o.editorData = enabled
	}
}

// WithWorkers sets the worker count of the graph's own compile pool.
// Ignored when WithPool is given.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithPool makes the graph compile on a shared pool. The graph does not
// close a shared pool.
func WithPool(p *CompilePool) Option {
	return func(o *options) {
		o.pool = p
	}
}

// WithRenderQueue routes proxy release through the execution engine's queue.
// By default the graph runs its own single-consumer queue.
func WithRenderQueue(q RenderQueue) Option {
	return func(o *options) {
		o.renderQueue = q
	}
}

// WithFiles sets the registry used to resolve includes and file hashes.
// The default is shader.Builtin.
func WithFiles(files *shader.Files) Option {
	return func(o *options) {
		o.files = files
	}
}

// WithProgramCache replaces the process-wide compiled program cache.
func WithProgramCache(c *backend.ProgramCache) Option {
	return func(o *options) {
		if c != nil {
			o.programCache = c
		}
	}
}

// WithFatalHandler replaces the handler for default kernel failures.
func WithFatalHandler(h FatalHandler) Option {
	return func(o *options) {
		if h != nil {
			o.fatal = h
		}
	}
}

// WithDeferredCompilation makes PostLoad skip the initial compile.
func WithDeferredCompilation(deferred bool) Option {
	return func(o *options) {
		o.deferred = deferred
	}
}

// WithDialect overrides the dialect that BuildKernelSource assembles in.
// By default it is the dialect of the runtime format's compiler.
func WithDialect(d shader.Dialect) Option {
	return func(o *options) {
		o.dialect = d
	}
}

// WithCompiler uses c for its format instead of a registry instance.
func WithCompiler(c backend.Compiler) Option {
	return func(o *options) {
		if o.compilers == nil {
			o.compilers = make(map[string]backend.Compiler)
		}
		o.compilers[c.Format()] = c
	}
}
