// Package loader reads graph definitions from HCL files.
//
// A file holds one or more graph blocks:
//
//	graph "Deformer" {
//	  binding "Mesh" {}
//
//	  data_interface "execution" "exec" {
//	    binding = "Mesh"
//	    threads = 64
//	  }
//	  data_interface "buffer" "positions" {
//	    binding = "Mesh"
//	    type    = "vec4<f32>"
//	  }
//
//	  kernel "Offset" {
//	    entry_point = "CSMain"
//	    group_size  = [64, 1, 1]
//	    source_file = "offset.wgsl"
//
//	    input "NumThreads" { return = "u32" }
//	    output "Store" { params = ["u32", "vec4<f32>"] }
//	  }
//
//	  edge {
//	    data_interface  = "exec"
//	    function        = "ReadNumThreads"
//	    kernel          = "Offset"
//	    kernel_function = "NumThreads"
//	  }
//	  edge {
//	    data_interface  = "positions"
//	    function        = "WriteValue"
//	    kernel          = "Offset"
//	    kernel_function = "Store"
//	  }
//	}
//
// The first label of a data_interface block names a factory registered
// with package datainterface; every attribute other than binding is passed
// to it. An edge connects to a kernel input when kernel_function names one
// of the kernel's input blocks, and to an output otherwise.
package loader
