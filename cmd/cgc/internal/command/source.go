package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/computegraph"
	"github.com/gogpu/computegraph/backend"
	"github.com/gogpu/computegraph/shader"
)

type sourceOptions struct {
	kernel string
	expand bool
	layout bool
}

// NewSourceCommand prints the assembled source of kernels.
func NewSourceCommand(cli *CLI) *cobra.Command {
	var o sourceOptions
	cmd := &cobra.Command{
		Use:   "source <graph.hcl>",
		Short: "Print the assembled source of each kernel",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return cli.eachGraph(args[0], func(g *computegraph.Graph) error {
				return cli.printSources(g, o)
			})
		},
	}
	cmd.Flags().StringVarP(&o.kernel, "kernel", "k", "", "Only print the named kernel")
	cmd.Flags().BoolVar(&o.expand, "expand", false, "Resolve include directives")
	cmd.Flags().BoolVar(&o.layout, "layout", false, "Print the parameter layout")
	return cmd
}

func (cli *CLI) printSources(g *computegraph.Graph, o sourceOptions) error {
	found := false
	for k, kernel := range g.Kernels {
		if kernel.Source == nil || (o.kernel != "" && kernel.Name != o.kernel) {
			continue
		}
		found = true
		b, err := g.BuildKernelSource(k)
		if err != nil {
			return err
		}

		text := b.Source
		if o.expand {
			req := backend.Request{Source: b.Source, Includes: b.Includes(), Files: shader.Builtin}
			if text, err = req.Expand(b.Dialect); err != nil {
				return err
			}
		}
		cli.printf("// %s (%s) hash %s\n", b.FriendlyName, b.Dialect.Name(), shader.HashString(b.HashKey))
		if o.layout {
			cli.printf("/*\n%s*/\n", b.Layout)
		}
		cli.printf("%s\n", text)
	}
	if o.kernel != "" && !found {
		return fmt.Errorf("no kernel %q", o.kernel)
	}
	return nil
}
