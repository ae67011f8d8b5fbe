package command

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/gogpu/computegraph"
	"github.com/gogpu/computegraph/cmd/cgc/internal/view"
)

var errInvalid = errors.New("graph is invalid")

// NewValidateCommand checks every graph of a file.
func NewValidateCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <graph.hcl>",
		Short: "Check that every kernel has exactly one execution edge",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return cli.eachGraph(args[0], func(g *computegraph.Graph) error {
				err := g.ValidateGraph()
				cli.printf("%-4s %s (%d kernels, %d data interfaces, %d edges)\n",
					view.Status(err == nil), view.Highlight("%s", g.Name),
					len(g.Kernels), len(g.DataInterfaces), len(g.Edges))
				if err != nil {
					cli.printf("     %v\n", err)
					return errInvalid
				}
				return nil
			})
		},
	}
}
