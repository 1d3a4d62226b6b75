package objgraph

import (
	"sort"

	"github.com/specialistvlad/resgraph/internal/diag"
)

// Len returns the number of nodes, including files added for missing
// targets.
func (g *Graph) Len() int { return len(g.nodes) }

// Has reports whether a node with the given key exists.
func (g *Graph) Has(key string) bool {
	_, ok := g.nodes[key]
	return ok
}

// Item returns the item stored under key.
func (g *Graph) Item(key string) (Item, bool) {
	n, ok := g.nodes[key]
	if !ok {
		return Item{}, false
	}
	return n.item, true
}

// Order returns every item, dependencies before dependents.
func (g *Graph) Order() []Item {
	items := make([]Item, len(g.order))
	for i, k := range g.order {
		items[i] = g.nodes[k].item
	}
	return items
}

// ObjectOrder returns the ids of object items in initialization order.
func (g *Graph) ObjectOrder() []string {
	ids := make([]string, 0, len(g.order))
	for _, k := range g.order {
		if item := g.nodes[k].item; item.Kind() == KindObject {
			ids = append(ids, item.ID())
		}
	}
	return ids
}

// Position returns the index of key in Order.
func (g *Graph) Position(key string) (int, bool) {
	i, ok := g.position[key]
	return i, ok
}

// Cycles returns the reported cycles sorted by their first member.
func (g *Graph) Cycles() []*diag.CycleError {
	return append([]*diag.CycleError(nil), g.cycles...)
}

// Broken returns the sorted ids of objects that had a dependency dropped
// because its target does not exist.
func (g *Graph) Broken() []string {
	ids := make([]string, 0, len(g.broken))
	for id := range g.broken {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DependenciesOf returns the keys the node depends on, sorted.
func (g *Graph) DependenciesOf(key string) []string {
	n, ok := g.nodes[key]
	if !ok {
		return nil
	}
	return g.sortedKeys(n.deps)
}

// DependentsOf returns the keys of nodes that depend on key, sorted.
func (g *Graph) DependentsOf(key string) []string {
	n, ok := g.nodes[key]
	if !ok {
		return nil
	}
	return g.sortedKeys(n.dependents)
}

// ReverseReachable returns the keys of the start nodes and of every node
// that transitively depends on one of them, sorted. Unknown start keys are
// ignored.
func (g *Graph) ReverseReachable(keys ...string) []string {
	seen := make(map[string]*node)
	var stack []*node
	for _, k := range keys {
		if n, ok := g.nodes[k]; ok && seen[k] == nil {
			seen[k] = n
			stack = append(stack, n)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for dk, dn := range n.dependents {
			if seen[dk] == nil {
				seen[dk] = dn
				stack = append(stack, dn)
			}
		}
	}
	return g.sortedKeys(seen)
}

// Files returns the paths of all file nodes, sorted.
func (g *Graph) Files() []string {
	var files []string
	for _, n := range g.nodes {
		if n.item.Kind() == KindFile {
			files = append(files, n.item.ID())
		}
	}
	sort.Strings(files)
	return files
}
