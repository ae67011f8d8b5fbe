// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package spirv compiles graph kernels from WGSL to SPIR-V with naga and
// optionally creates HAL shader modules for every compiled permutation.
//
// Importing the package registers the "spirv" format:
//
//	import _ "github.com/gogpu/computegraph/backend/spirv"
package spirv

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/computegraph/backend"
	"github.com/gogpu/computegraph/shader"
)

// Format is the registered format name.
const Format = "spirv"

// ErrNoHALDevice is returned when a device provider does not expose a
// hal.Device.
var ErrNoHALDevice = errors.New("spirv: provider does not expose a hal.Device")

func init() {
	backend.Register(Format, func() backend.Compiler { return New() })
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithDevice makes the compiler create a hal.ShaderModule for each variant.
// Modules are owned by the compiler and destroyed by Close.
func WithDevice(device hal.Device) Option {
	return func(c *Compiler) {
		c.device = device
	}
}

// WithFeatureLevel overrides the reported feature level (default SM6).
func WithFeatureLevel(level shader.FeatureLevel) Option {
	return func(c *Compiler) {
		c.level = level
	}
}

// Compiler is the naga-based SPIR-V back end.
//
// Compiler is safe for concurrent use.
type Compiler struct {
	device hal.Device
	level  shader.FeatureLevel

	mu      sync.Mutex
	modules []hal.ShaderModule
	closed  bool
}

// New creates a compiler. Without WithDevice it only produces SPIR-V bytes.
func New(opts ...Option) *Compiler {
	c := &Compiler{level: shader.FeatureLevelSM6}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromProvider creates a compiler that shares the HAL device of a gpucontext
// provider, such as a gogpu window. The provider must implement
// HalDevice() any returning a hal.Device.
func FromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Compiler, error) {
	type halProvider interface {
		HalDevice() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALDevice
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is %T", ErrNoHALDevice, hp.HalDevice())
	}
	return New(append([]Option{WithDevice(device)}, opts...)...), nil
}

// Format implements backend.Compiler.
func (c *Compiler) Format() string { return Format }

// FeatureLevel implements backend.Compiler.
func (c *Compiler) FeatureLevel() shader.FeatureLevel { return c.level }

// Dialect implements backend.Compiler.
func (c *Compiler) Dialect() shader.Dialect { return shader.WGSL }

// Compile expands the request to a single WGSL unit and compiles it.
func (c *Compiler) Compile(ctx context.Context, req *backend.Request) (*backend.Output, error) {
	src, err := req.Expand(shader.WGSL)
	if err != nil {
		return &backend.Output{Diagnostics: []string{err.Error()}}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	code, err := naga.Compile(src)
	if err != nil {
		return &backend.Output{Diagnostics: []string{err.Error()}}, fmt.Errorf("spirv: %s: %w", req.FriendlyName, err)
	}
	out := &backend.Output{Code: code}

	if c.device == nil {
		return out, nil
	}
	module, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: fmt.Sprintf("%s#%d", req.FriendlyName, req.PermutationID),
		Source: hal.ShaderSource{
			SPIRV: Words(code),
		},
	})
	if err != nil {
		return out, fmt.Errorf("spirv: create shader module for %s: %w", req.FriendlyName, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("spirv: compiler closed")
	}
	c.modules = append(c.modules, module)
	c.mu.Unlock()

	out.Module = module
	return out, nil
}

// Modules returns the number of live shader modules.
func (c *Compiler) Modules() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.modules)
}

// Close destroys every shader module the compiler created. Programs
// compiled earlier keep their SPIR-V bytes but their Module fields become
// invalid. Close is safe to call multiple times.
func (c *Compiler) Close() error {
	c.mu.Lock()
	modules := c.modules
	c.modules = nil
	c.closed = true
	c.mu.Unlock()

	for _, m := range modules {
		if m != nil {
			c.device.DestroyShaderModule(m)
		}
	}
	if len(modules) > 0 {
		backend.Logger().Debug("spirv: shader modules destroyed", "count", len(modules))
	}
	return nil
}

// Words converts SPIR-V bytes to little-endian 32-bit words.
func Words(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = uint32(code[i*4]) |
			uint32(code[i*4+1])<<8 |
			uint32(code[i*4+2])<<16 |
			uint32(code[i*4+3])<<24
	}
	return words
}
