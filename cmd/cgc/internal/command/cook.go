package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gogpu/computegraph"
	"github.com/gogpu/computegraph/cmd/cgc/internal/view"
)

var errCook = errors.New("kernels failed to cook")

type platformOptions struct {
	platform string
	formats  []string
}

func (o *platformOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.platform, "platform", "p", "", "Target platform from the configuration file")
	cmd.Flags().StringSliceVar(&o.formats, "formats", nil, "Shader formats, instead of a configured platform")
}

// resolvePlatform returns the target platform named by the flags.
func (cli *CLI) resolvePlatform(o platformOptions) (computegraph.TargetPlatform, error) {
	switch {
	case len(o.formats) > 0:
		name := o.platform
		if name == "" {
			name = "cli"
		}
		return computegraph.TargetPlatform{Name: name, Formats: o.formats}, nil
	case o.platform != "":
		p, ok := cli.cfg.Platform(o.platform)
		if !ok {
			return computegraph.TargetPlatform{}, fmt.Errorf("platform %q is not configured", o.platform)
		}
		return p, nil
	}
	return computegraph.TargetPlatform{}, errors.New("one of --platform or --formats is required")
}

// NewCookCommand compiles every graph for a target platform.
func NewCookCommand(cli *CLI) *cobra.Command {
	var (
		o       platformOptions
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "cook <graph.hcl>",
		Short: "Compile every kernel for each format of a target platform",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cli.resolvePlatform(o)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return cli.eachGraph(args[0], func(g *computegraph.Graph) error {
				return cli.cook(ctx, g, p)
			}, computegraph.WithFatalHandler(logFatal))
		},
	}
	o.register(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Give up waiting for the platform cache after this long")
	return cmd
}

func (cli *CLI) cook(ctx context.Context, g *computegraph.Graph, p computegraph.TargetPlatform) error {
	start := time.Now()
	if err := g.BeginCacheForPlatform(p); err != nil {
		return err
	}

	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for !g.IsCachedPlatformDataLoaded(p.Name) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("platform %s: %w", p.Name, ctx.Err())
		case <-tick.C:
		}
	}

	resources := g.CachedPlatformResources(p.Name)
	cli.printf("%s for %s in %s\n", view.Highlight("%s", g.Name), p.Name, time.Since(start).Round(time.Millisecond))
	failed := 0
	for _, r := range resources {
		build := r.Build()
		name := "?"
		if build != nil {
			name = build.FriendlyName
		}
		ok := r.State() == computegraph.ResourceCompiled
		if !ok {
			failed++
		}
		cli.printf("  %-4s %-8s %-24s %10s\n",
			view.Status(ok), r.Format(), name, humanize.Bytes(uint64(r.Program().CodeSize()))) //nolint:gosec // sizes are non-negative
		if !ok {
			if err := r.Result().Err; err != nil {
				cli.printf("       %v\n", err)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errCook, failed, len(resources))
	}
	return nil
}

// NewCookHashCommand prints the cook dependency hash of every graph.
func NewCookHashCommand(cli *CLI) *cobra.Command {
	var (
		o       platformOptions
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "cook-hash <graph.hcl>",
		Short: "Print the hash of every shader file a platform cook depends on",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := cli.resolvePlatform(o)
			if err != nil {
				return err
			}
			return cli.eachGraph(args[0], func(g *computegraph.Graph) error {
				deps := g.CookDependencies(p)
				h, err := computegraph.HashDependenciesForCook(deps, nil)
				if err != nil {
					return err
				}
				cli.printf("%s  %s\n", h, g.Name)
				if verbose {
					for _, path := range deps.ShaderVirtualPaths {
						cli.printf("    %s\n", path)
					}
				}
				return nil
			})
		},
	}
	o.register(cmd)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List the dependency paths")
	return cmd
}
