package command

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gogpu/computegraph"
	"github.com/gogpu/computegraph/cmd/cgc/internal/view"
)

var errCompile = errors.New("kernels failed to compile")

// NewCompileCommand compiles every graph for the runtime format.
func NewCompileCommand(cli *CLI) *cobra.Command {
	var diagnostics bool
	cmd := &cobra.Command{
		Use:   "compile <graph.hcl>",
		Short: "Compile every kernel for the runtime format",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return cli.eachGraph(args[0], func(g *computegraph.Graph) error {
				return cli.compile(g, diagnostics)
			}, computegraph.WithFatalHandler(logFatal))
		},
	}
	cmd.Flags().BoolVar(&diagnostics, "diagnostics", false, "Print compiler diagnostics of successful kernels")
	return cmd
}

// logFatal replaces the exiting fatal handler. The failed default kernel
// is then reported like any other failure.
func logFatal(kernel string, err error) {
	computegraph.Logger().Error("default kernel failed to compile", "kernel", kernel, "error", err)
}

func (cli *CLI) compile(g *computegraph.Graph, diagnostics bool) error {
	var mu sync.Mutex
	results := make(map[int]computegraph.KernelCompileResult)
	g.OnKernelCompiled(func(k int, res computegraph.KernelCompileResult) {
		mu.Lock()
		defer mu.Unlock()
		results[k] = res
	})

	if err := g.UpdateResources(true); err != nil {
		return err
	}
	proxy := g.RenderProxy()
	if proxy == nil {
		return fmt.Errorf("no render proxy published")
	}

	mu.Lock()
	defer mu.Unlock()
	failed := 0
	cli.printf("%s (generation %d)\n", view.Highlight("%s", g.Name), proxy.Generation)
	for _, inv := range proxy.Invocations {
		res, compiled := results[inv.KernelIndex]
		if !compiled {
			// Reused without compiling.
			res = computegraph.KernelCompileResult{Success: inv.Program != nil, Cached: true}
		}
		if !res.Success {
			failed++
		}
		var variants int
		var size uint64
		if inv.Program != nil {
			variants = len(inv.Program.Variants)
			size = uint64(inv.Program.CodeSize()) //nolint:gosec // sizes are non-negative
		}
		cli.printf("  %-4s %-24s %2d variants %10s%s\n",
			view.Status(res.Success), inv.Name, variants, humanize.Bytes(size), cachedSuffix(res.Cached))
		if !res.Success || diagnostics {
			for _, d := range res.Diagnostics {
				cli.printf("       %s\n", d)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errCompile, failed, len(proxy.Invocations))
	}
	return nil
}

func cachedSuffix(cached bool) string {
	if cached {
		return " (cached)"
	}
	return ""
}
