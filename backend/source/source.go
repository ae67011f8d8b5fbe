// Package source provides pass-through compilers that emit the fully
// preprocessed kernel source instead of a binary. They register the "wgsl"
// and "hlsl" formats and are used for inspection, golden tests and back ends
// that compile at load time.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/computegraph/backend"
	"github.com/gogpu/computegraph/shader"
)

// ErrEntryPointNotFound is returned when the expanded source never mentions
// the requested entry point.
var ErrEntryPointNotFound = errors.New("source: entry point not found")

func init() {
	backend.Register("wgsl", func() backend.Compiler { return NewWGSL() })
	backend.Register("hlsl", func() backend.Compiler { return NewHLSL() })
}

// Compiler stores the expanded source of each permutation as its code.
type Compiler struct {
	format  string
	dialect shader.Dialect
	level   shader.FeatureLevel
}

// NewWGSL returns the "wgsl" pass-through compiler.
func NewWGSL() *Compiler {
	return &Compiler{format: "wgsl", dialect: shader.WGSL, level: shader.FeatureLevelES31}
}

// NewHLSL returns the "hlsl" pass-through compiler.
func NewHLSL() *Compiler {
	return &Compiler{format: "hlsl", dialect: shader.HLSL, level: shader.FeatureLevelSM5}
}

func (c *Compiler) Format() string                     { return c.format }
func (c *Compiler) FeatureLevel() shader.FeatureLevel { return c.level }
func (c *Compiler) Dialect() shader.Dialect           { return c.dialect }

// Compile implements backend.Compiler.
func (c *Compiler) Compile(ctx context.Context, req *backend.Request) (*backend.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := req.Expand(c.dialect)
	if err != nil {
		return &backend.Output{Diagnostics: []string{err.Error()}}, err
	}
	if req.EntryPoint != "" && !strings.Contains(src, req.EntryPoint) {
		diag := fmt.Sprintf("%s: entry point %q not found", req.FriendlyName, req.EntryPoint)
		return &backend.Output{Diagnostics: []string{diag}}, fmt.Errorf("%w: %q", ErrEntryPointNotFound, req.EntryPoint)
	}
	return &backend.Output{Code: []byte(src)}, nil
}
