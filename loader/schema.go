package loader

import "github.com/hashicorp/hcl/v2"

// fileRoot is the top level of a graph file.
type fileRoot struct {
	Graphs []*graphBlock `hcl:"graph,block"`
}

type graphBlock struct {
	Name           string                `hcl:"name,label"`
	Bindings       []*bindingBlock       `hcl:"binding,block"`
	DataInterfaces []*dataInterfaceBlock `hcl:"data_interface,block"`
	Kernels        []*kernelBlock        `hcl:"kernel,block"`
	Edges          []*edgeBlock          `hcl:"edge,block"`
}

type bindingBlock struct {
	Name string `hcl:"name,label"`
}

// dataInterfaceBlock keeps its factory attributes undecoded in Config.
type dataInterfaceBlock struct {
	Type    string   `hcl:"type,label"`
	Name    string   `hcl:"name,label"`
	Binding string   `hcl:"binding,optional"`
	Config  hcl.Body `hcl:",remain"`
}

type kernelBlock struct {
	Name         string              `hcl:"name,label"`
	EntryPoint   string              `hcl:"entry_point"`
	GroupSize    []uint32            `hcl:"group_size,optional"`
	Source       string              `hcl:"source,optional"`
	SourceFile   string              `hcl:"source_file,optional"`
	Default      bool                `hcl:"default,optional"`
	Defines      map[string]string   `hcl:"defines,optional"`
	Inputs       []*functionBlock    `hcl:"input,block"`
	Outputs      []*functionBlock    `hcl:"output,block"`
	Permutations []*permutationBlock `hcl:"permutation,block"`
	Includes     []*includeBlock     `hcl:"include,block"`
}

// functionBlock is a kernel function signature. Params entries are a type,
// optionally preceded by in, out or inout.
type functionBlock struct {
	Name   string   `hcl:"name,label"`
	Return string   `hcl:"return,optional"`
	Params []string `hcl:"params,optional"`
}

type permutationBlock struct {
	Name   string `hcl:"name,label"`
	Values int    `hcl:"values,optional"`
}

// includeBlock is an additional source served at a virtual path.
type includeBlock struct {
	Path      string   `hcl:"path,label"`
	Source    string   `hcl:"source,optional"`
	File      string   `hcl:"file,optional"`
	DependsOn []string `hcl:"depends_on,optional"`
}

type edgeBlock struct {
	DataInterface  string `hcl:"data_interface"`
	Function       string `hcl:"function"`
	Kernel         string `hcl:"kernel"`
	KernelFunction string `hcl:"kernel_function,optional"`
	NameOverride   string `hcl:"name_override,optional"`
	Namespace      string `hcl:"namespace,optional"`
}
