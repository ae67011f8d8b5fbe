// Command cgc validates, compiles and cooks computegraph graph files.
//
// Usage:
//
//	cgc [--config cgc.yaml] [--format wgsl] <command> <graph.hcl>
//
// Commands are validate, source, compile, cook and cook-hash.
package main

import (
	"os"

	"github.com/gogpu/computegraph/cmd/cgc/internal/command"
)

func main() {
	os.Exit(command.Execute())
}
