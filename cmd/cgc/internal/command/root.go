// Package command implements the cgc subcommands.
package command

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gogpu/computegraph"
	_ "github.com/gogpu/computegraph/backend/source" // wgsl and hlsl
	_ "github.com/gogpu/computegraph/backend/spirv"  // spirv
	"github.com/gogpu/computegraph/cmd/cgc/internal/view"
	"github.com/gogpu/computegraph/internal/config"
	"github.com/gogpu/computegraph/loader"
)

// CLI is the state shared by every subcommand.
type CLI struct {
	Out io.Writer
	Err io.Writer

	configPath    string
	logLevel      string
	logFormat     string
	runtimeFormat string
	graphName     string

	cfg *config.Config
}

// NewCLI returns a CLI writing results to out and logs to errOut.
func NewCLI(out, errOut io.Writer) *CLI {
	return &CLI{Out: out, Err: errOut}
}

// NewRootCommand builds the command tree.
func NewRootCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cgc",
		Short:         "Validate, compile and cook computegraph graph files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.setup(cmd)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetOut(cli.Out)
	cmd.SetErr(cli.Err)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&cli.configPath, "config", "c", "", "Path to a cgc.yaml configuration file")
	flags.StringVar(&cli.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&cli.logFormat, "log-format", "", "Log format: text or json")
	flags.StringVarP(&cli.runtimeFormat, "format", "f", "", "Runtime shader format, e.g. spirv or wgsl")
	flags.StringVarP(&cli.graphName, "graph", "g", "", "Only process the named graph")

	cmd.AddCommand(
		NewValidateCommand(cli),
		NewSourceCommand(cli),
		NewCompileCommand(cli),
		NewCookCommand(cli),
		NewCookHashCommand(cli),
	)
	return cmd
}

// setup loads the configuration, applies flag overrides and installs the
// logger.
func (cli *CLI) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cli.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = cli.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = cli.logFormat
	}
	if flags.Changed("format") {
		cfg.RuntimeFormat = cli.runtimeFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := cfg.Log.SlogLevel()
	computegraph.SetLogger(view.NewLogger(cli.Err, level, cfg.Log.Format))
	cli.cfg = cfg
	return nil
}

// loadGraphs loads the graphs of path, keeping only --graph when given.
// The caller closes the returned graphs.
func (cli *CLI) loadGraphs(path string, opts ...computegraph.Option) ([]*computegraph.Graph, error) {
	opts = append(cli.cfg.GraphOptions(), opts...)
	graphs, err := loader.LoadFile(path, opts...)
	if err != nil {
		return nil, err
	}
	if cli.graphName == "" {
		return graphs, nil
	}
	var keep []*computegraph.Graph
	for _, g := range graphs {
		if g.Name == cli.graphName {
			keep = append(keep, g)
			continue
		}
		_ = g.Close()
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("no graph %q in %s", cli.graphName, path)
	}
	return keep, nil
}

// eachGraph runs fn on every graph of path and closes them afterwards.
// All graphs are visited; the returned error joins their failures.
func (cli *CLI) eachGraph(path string, fn func(*computegraph.Graph) error, opts ...computegraph.Option) error {
	graphs, err := cli.loadGraphs(path, opts...)
	if err != nil {
		return err
	}
	var errs []error
	for _, g := range graphs {
		if err := fn(g); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g.Name, err))
		}
		_ = g.Close()
	}
	return errors.Join(errs...)
}

func (cli *CLI) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(cli.Out, format, a...)
}

// exactArgs is cobra.ExactArgs with usage shown on error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == n {
			return nil
		}
		_ = cmd.Usage()
		return fmt.Errorf("requires exactly %d argument(s), got %d", n, len(args))
	}
}

// Execute runs the root command on the process arguments and returns the
// exit code.
func Execute() int {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		color.NoColor = true
	}
	cli := NewCLI(os.Stdout, os.Stderr)
	if err := NewRootCommand(cli).Execute(); err != nil {
		msg := strings.TrimSpace(err.Error())
		_, _ = fmt.Fprintln(cli.Err, color.RedString("Error:"), msg)
		return 1
	}
	return 0
}
