package shader

import (
	_ "embed"
)

//go:embed shaders/ComputeKernel.wgsl
var computeKernelWGSL string

func init() {
	Builtin.MustRegister(KernelWrapperPath, computeKernelWGSL)
}
