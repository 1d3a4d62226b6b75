package scene

import "sort"

// Index looks up live objects by id.
type Index interface {
	Lookup(id string) (Object, bool)
}

// MapIndex is an Index backed by a map.
type MapIndex map[string]Object

// Lookup implements Index.
func (m MapIndex) Lookup(id string) (Object, bool) {
	obj, ok := m[id]
	return obj, ok
}

// IndexFunc adapts a function to the Index interface.
type IndexFunc func(id string) (Object, bool)

// Lookup implements Index.
func (f IndexFunc) Lookup(id string) (Object, bool) {
	return f(id)
}

// Layered returns an Index that consults each index in turn and returns the
// first hit. Nil indexes are skipped.
func Layered(indexes ...Index) Index {
	return IndexFunc(func(id string) (Object, bool) {
		for _, idx := range indexes {
			if idx == nil {
				continue
			}
			if obj, ok := idx.Lookup(id); ok {
				return obj, true
			}
		}
		return nil, false
	})
}

// ResolvedObjectSet maps object ids to their resolved state.
type ResolvedObjectSet map[string]*Resolved

// Lookup implements Index.
func (s ResolvedObjectSet) Lookup(id string) (Object, bool) {
	r, ok := s[id]
	if !ok {
		return nil, false
	}
	return r.Object, true
}

// IDs returns the ids in the set in lexical order.
func (s ResolvedObjectSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
