// Package datainterface provides the built-in data interfaces of
// computegraph and a registry of factories the graph loader creates them
// through.
//
// Execution drives the dispatch shape. Buffer exposes a typed storage
// buffer through ReadNumValues, ReadValue and WriteValue. Constant exposes
// a single uniform value through ReadConstant.
//
// Register additional interfaces from init:
//
//	func init() {
//	    datainterface.Register("skin_weights", newSkinWeights)
//	}
package datainterface
