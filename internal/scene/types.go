package scene

import "sort"

// TypeChecker decides whether an object of type actual may be stored in a
// property that expects type expected.
type TypeChecker interface {
	Compatible(actual, expected string) bool
}

// ExactTypes accepts only identical type names.
type ExactTypes struct{}

// Compatible implements TypeChecker.
func (ExactTypes) Compatible(actual, expected string) bool {
	return expected == "" || actual == expected
}

// Hierarchy maps a type name to its base type name. A type is compatible
// with itself and with every type up its base chain.
type Hierarchy map[string]string

// Compatible implements TypeChecker.
func (h Hierarchy) Compatible(actual, expected string) bool {
	if expected == "" {
		return true
	}
	seen := make(map[string]struct{})
	for t := actual; t != ""; t = h[t] {
		if t == expected {
			return true
		}
		if _, loop := seen[t]; loop {
			return false
		}
		seen[t] = struct{}{}
	}
	return false
}

// TypeIndex partitions object ids by declared type.
type TypeIndex struct {
	byType map[string][]string
	typeOf map[string]string
}

// NewTypeIndex builds the index for a set of objects.
func NewTypeIndex(objects []Object) *TypeIndex {
	ti := &TypeIndex{
		byType: make(map[string][]string),
		typeOf: make(map[string]string, len(objects)),
	}
	for _, obj := range objects {
		ti.byType[obj.Type()] = append(ti.byType[obj.Type()], obj.ID())
		ti.typeOf[obj.ID()] = obj.Type()
	}
	for _, ids := range ti.byType {
		sort.Strings(ids)
	}
	return ti
}

// ByType returns the ids of all objects declared with type t, sorted.
func (ti *TypeIndex) ByType(t string) []string {
	if ti == nil {
		return nil
	}
	return ti.byType[t]
}

// TypeOf returns the declared type of the object with the given id.
func (ti *TypeIndex) TypeOf(id string) (string, bool) {
	if ti == nil {
		return "", false
	}
	t, ok := ti.typeOf[id]
	return t, ok
}

// Types returns all declared types, sorted.
func (ti *TypeIndex) Types() []string {
	if ti == nil {
		return nil
	}
	types := make([]string, 0, len(ti.byType))
	for t := range ti.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
