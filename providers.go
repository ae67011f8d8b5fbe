package computegraph

import "fmt"

// maxMaskBinding is the number of binding indices a mask can express.
const maxMaskBinding = 64

// DataInterfaceMasks returns which supported inputs and outputs of data
// interface diIndex are connected: bit i of input is set when an input edge
// uses function i, likewise for output. Binding indices beyond 63 are not
// representable and are left out.
func (g *Graph) DataInterfaceMasks(diIndex int) (input, output uint64) {
	for _, e := range g.Edges {
		if e.DataInterfaceIndex != diIndex {
			continue
		}
		b := e.DataInterfaceBindingIndex
		if b < 0 || b >= maxMaskBinding {
			continue
		}
		if e.KernelInput {
			input |= 1 << uint(b)
		} else {
			output |= 1 << uint(b)
		}
	}
	return input, output
}

// CreateDataProviders creates and initializes the providers of every data
// interface in binding group binding for obj. The result is indexed like
// DataInterfaces; slots outside the group, empty slots and interfaces that
// fail to create a provider are nil.
func (g *Graph) CreateDataProviders(binding int, obj any) ([]DataProvider, error) {
	if err := g.checkBindingObject(binding, obj); err != nil {
		return nil, err
	}

	providers := make([]DataProvider, len(g.DataInterfaces))
	for i, di := range g.DataInterfaces {
		if di == nil {
			continue
		}
		if b, ok := g.bindingOf(i); !ok || b != binding {
			continue
		}
		p, err := di.CreateDataProvider()
		if err == nil && p == nil {
			err = fmt.Errorf("computegraph: %s returned no provider", di.ClassName())
		}
		if err != nil {
			Logger().Warn("computegraph: data provider creation failed",
				"graph", g.Name,
				"data_interface", di.ClassName(),
				"data_interface_index", i,
				"binding", g.Bindings[binding].Name,
				"error", err)
			continue
		}
		in, out := g.DataInterfaceMasks(i)
		p.Initialize(di, obj, in, out)
		providers[i] = p
	}
	return providers, nil
}

// InitializeDataProviders rebinds existing providers of binding group
// binding to obj. providers must be indexed like DataInterfaces; nil entries
// are skipped.
func (g *Graph) InitializeDataProviders(binding int, obj any, providers []DataProvider) error {
	if err := g.checkBindingObject(binding, obj); err != nil {
		return err
	}
	if len(providers) != len(g.DataInterfaces) {
		return fmt.Errorf("computegraph: %d providers for %d data interfaces", len(providers), len(g.DataInterfaces))
	}
	for i, p := range providers {
		di := g.DataInterfaces[i]
		if p == nil || di == nil {
			continue
		}
		if b, ok := g.bindingOf(i); !ok || b != binding {
			continue
		}
		in, out := g.DataInterfaceMasks(i)
		p.Initialize(di, obj, in, out)
	}
	return nil
}

func (g *Graph) checkBindingObject(binding int, obj any) error {
	if binding < 0 || binding >= len(g.Bindings) {
		return fmt.Errorf("%w: %d", ErrBindingIndex, binding)
	}
	b := g.Bindings[binding]
	if obj != nil && b.Accepts != nil && !b.Accepts(obj) {
		return fmt.Errorf("%w: %s does not accept %T", ErrBindingObject, b.Name, obj)
	}
	return nil
}
