package shader

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Define is one compile-time definition. Value may be empty for flags.
type Define struct {
	Name  string
	Value string
}

// DefinitionSet is an ordered set of definitions keyed by name. The first
// insertion fixes a name's position; later insertions replace its value.
type DefinitionSet struct {
	defs []Define
}

// Set adds or replaces the definition called name.
func (s *DefinitionSet) Set(name, value string) {
	for i := range s.defs {
		if s.defs[i].Name == name {
			s.defs[i].Value = value
			return
		}
	}
	s.defs = append(s.defs, Define{Name: name, Value: value})
}

// Merge copies every definition of o into s.
func (s *DefinitionSet) Merge(o DefinitionSet) {
	for _, d := range o.defs {
		s.Set(d.Name, d.Value)
	}
}

// Lookup returns the value of the named definition.
func (s DefinitionSet) Lookup(name string) (string, bool) {
	for _, d := range s.defs {
		if d.Name == name {
			return d.Value, true
		}
	}
	return "", false
}

// Len returns the number of definitions.
func (s DefinitionSet) Len() int { return len(s.defs) }

// Defines returns a copy of the definitions in insertion order.
func (s DefinitionSet) Defines() []Define { return slices.Clone(s.defs) }

// Clone returns an independent copy of s.
func (s DefinitionSet) Clone() DefinitionSet { return DefinitionSet{defs: slices.Clone(s.defs)} }

// String returns a canonical "NAME=VALUE;" listing, used in hash keys.
func (s DefinitionSet) String() string {
	var b strings.Builder
	for _, d := range s.defs {
		b.WriteString(d.Name)
		b.WriteByte('=')
		b.WriteString(d.Value)
		b.WriteByte(';')
	}
	return b.String()
}

// PermutationOption is one axis of a permutation space. A boolean option has
// two values.
type PermutationOption struct {
	Name   string
	Values int
}

// PermutationSet is the permutation space declared by a single kernel.
type PermutationSet struct {
	Options []PermutationOption
}

// AddBool declares a two-valued option.
func (s *PermutationSet) AddBool(name string) { s.Add(name, 2) }

// Add declares an option with the given number of values.
func (s *PermutationSet) Add(name string, values int) {
	s.Options = append(s.Options, PermutationOption{Name: name, Values: values})
}

// ErrPermutation is returned for permutation lookups that do not fit the vector.
var ErrPermutation = errors.New("shader: invalid permutation")

// PermutationVector is the combined permutation space of a kernel and the
// data interfaces bound to it. Option order is insertion order and defines
// the mixed-radix encoding of permutation ids.
type PermutationVector struct {
	options []PermutationOption
}

// NewPermutationVector returns an empty vector.
func NewPermutationVector() *PermutationVector { return &PermutationVector{} }

// AddSet appends every option of s.
func (v *PermutationVector) AddSet(s PermutationSet) {
	for _, o := range s.Options {
		v.AddOption(o.Name, o.Values)
	}
}

// AddBool appends a two-valued option.
func (v *PermutationVector) AddBool(name string) { v.AddOption(name, 2) }

// AddOption appends an option. Counts below two are raised to two. An option
// that already exists keeps its position and takes the larger count.
func (v *PermutationVector) AddOption(name string, values int) {
	values = max(values, 2)
	for i := range v.options {
		if v.options[i].Name == name {
			v.options[i].Values = max(v.options[i].Values, values)
			return
		}
	}
	v.options = append(v.options, PermutationOption{Name: name, Values: values})
}

// Options returns a copy of the options in encoding order.
func (v *PermutationVector) Options() []PermutationOption {
	if v == nil {
		return nil
	}
	return slices.Clone(v.options)
}

// NumPermutations returns the size of the permutation space, 1 when empty.
func (v *PermutationVector) NumPermutations() int {
	n := 1
	if v == nil {
		return n
	}
	for _, o := range v.options {
		n *= o.Values
	}
	return n
}

// PermutationID encodes option values into a permutation id. Options absent
// from values take value 0.
func (v *PermutationVector) PermutationID(values map[string]int) (int, error) {
	if v == nil {
		if len(values) > 0 {
			return 0, fmt.Errorf("%w: vector has no options", ErrPermutation)
		}
		return 0, nil
	}
	for name := range values {
		if !slices.ContainsFunc(v.options, func(o PermutationOption) bool { return o.Name == name }) {
			return 0, fmt.Errorf("%w: unknown option %q", ErrPermutation, name)
		}
	}
	id, stride := 0, 1
	for _, o := range v.options {
		val := values[o.Name]
		if val < 0 || val >= o.Values {
			return 0, fmt.Errorf("%w: option %q value %d out of range [0,%d)", ErrPermutation, o.Name, val, o.Values)
		}
		id += val * stride
		stride *= o.Values
	}
	return id, nil
}

// Values decodes a permutation id into one definition per option.
func (v *PermutationVector) Values(id int) ([]Define, error) {
	if id < 0 || id >= v.NumPermutations() {
		return nil, fmt.Errorf("%w: id %d out of range [0,%d)", ErrPermutation, id, v.NumPermutations())
	}
	if v == nil {
		return nil, nil
	}
	defs := make([]Define, 0, len(v.options))
	for _, o := range v.options {
		defs = append(defs, Define{Name: o.Name, Value: strconv.Itoa(id % o.Values)})
		id /= o.Values
	}
	return defs, nil
}

// Equal reports whether both vectors have the same options in the same order.
func (v *PermutationVector) Equal(o *PermutationVector) bool {
	return slices.Equal(v.Options(), o.Options())
}

// Clone returns an independent copy of v.
func (v *PermutationVector) Clone() *PermutationVector {
	return &PermutationVector{options: v.Options()}
}

// String returns a canonical "NAME:COUNT;" listing, used in hash keys.
func (v *PermutationVector) String() string {
	var b strings.Builder
	for _, o := range v.Options() {
		b.WriteString(o.Name)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(o.Values))
		b.WriteByte(';')
	}
	return b.String()
}
