package objgraph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/specialistvlad/resgraph/internal/diag"
)

// ErrDuplicateItem is returned by Build when two items share a key.
var ErrDuplicateItem = errors.New("duplicate graph item")

// Build constructs the dependency graph of items. edgesOf is called exactly
// once per item. Cycles and dangling edges never fail the build: they are
// returned as diagnostics next to a best-effort order. The error is reserved
// for invalid input.
func Build(items []Item, edgesOf EdgeFunc, opts Options) (*Graph, diag.Diagnostics, error) {
	g := &Graph{
		nodes:  make(map[string]*node, len(items)),
		broken: make(map[string]struct{}),
	}

	for _, item := range items {
		if item.IsZero() {
			return nil, nil, fmt.Errorf("graph item has no kind")
		}
		k := item.Key()
		if _, exists := g.nodes[k]; exists {
			return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateItem, k)
		}
		g.nodes[k] = newNode(item)
	}

	var diags diag.Diagnostics
	for _, item := range items {
		if edgesOf == nil {
			break
		}
		from := g.nodes[item.Key()]
		for _, e := range edgesOf(item) {
			to, ok := g.nodes[e.Key()]
			if !ok {
				to, ok = g.resolveDangling(item, e, opts, &diags)
				if !ok {
					continue
				}
			}
			from.deps[to.item.Key()] = to
			to.dependents[from.item.Key()] = from
		}
	}

	g.order, g.cycles = g.sortComponents()
	g.position = make(map[string]int, len(g.order))
	for i, k := range g.order {
		g.position[k] = i
	}
	for _, c := range g.cycles {
		diags = append(diags, diag.Warning(c))
	}

	return g, diags, nil
}

// resolveDangling handles an edge whose target is not among the items.
func (g *Graph) resolveDangling(owner Item, e Edge, opts Options, diags *diag.Diagnostics) (*node, bool) {
	switch e.Kind {
	case KindFile:
		if opts.AllowMissingFiles {
			n := newNode(FileItem(e.Target))
			g.nodes[n.item.Key()] = n
			return n, true
		}
		*diags = append(*diags, diag.Error(&diag.MissingFileError{
			OwnerID:  owner.ID(),
			File:     e.Target,
			Required: true,
		}))
	case KindObject:
		*diags = append(*diags, diag.Error(&diag.DanglingReferenceError{
			OwnerID: owner.ID(),
			Path:    e.Path,
			Target:  e.Target,
		}))
	default:
		*diags = append(*diags, diag.Error(fmt.Errorf("object %q has an edge of unknown kind %v", owner.ID(), e.Kind)))
	}
	if owner.Kind() == KindObject {
		g.broken[owner.ID()] = struct{}{}
	}
	return nil, false
}

// sortComponents runs Tarjan's algorithm and orders the condensation by
// dependency depth, breaking ties lexically. Tarjan emits a component only
// after every component it depends on, so depths can be filled in one pass.
func (g *Graph) sortComponents() ([]string, []*diag.CycleError) {
	t := &tarjan{
		g:       g,
		indices: make(map[string]int, len(g.nodes)),
		lowlink: make(map[string]int, len(g.nodes)),
		onStack: make(map[string]bool),
	}
	for _, k := range g.sortedKeys(g.nodes) {
		if _, seen := t.indices[k]; !seen {
			t.strongConnect(k)
		}
	}

	componentOf := make(map[string]int, len(g.nodes))
	for ci, members := range t.components {
		for _, k := range members {
			componentOf[k] = ci
		}
	}

	depth := make([]int, len(t.components))
	for ci, members := range t.components {
		for _, k := range members {
			for dk := range g.nodes[k].deps {
				if dc := componentOf[dk]; dc != ci {
					depth[ci] = max(depth[ci], depth[dc]+1)
				}
			}
		}
	}

	var cycles []*diag.CycleError
	for ci, members := range t.components {
		g.sortNodeKeys(members)
		t.components[ci] = members
		if len(members) > 1 || g.selfLoop(members[0]) {
			ids := make([]string, len(members))
			for i, k := range members {
				ids[i] = g.nodes[k].item.ID()
			}
			cycles = append(cycles, &diag.CycleError{Members: ids})
		}
	}

	idx := make([]int, len(t.components))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ca, cb := idx[a], idx[b]
		if depth[ca] != depth[cb] {
			return depth[ca] < depth[cb]
		}
		return g.less(t.components[ca][0], t.components[cb][0])
	})

	order := make([]string, 0, len(g.nodes))
	for _, ci := range idx {
		order = append(order, t.components[ci]...)
	}

	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i].Members[0] < cycles[j].Members[0]
	})
	return order, cycles
}

func (g *Graph) selfLoop(k string) bool {
	_, ok := g.nodes[k].deps[k]
	return ok
}

// less orders node keys by item id, then by key so an object and a file
// with the same id still compare deterministically.
func (g *Graph) less(a, b string) bool {
	ia, ib := g.nodes[a].item.ID(), g.nodes[b].item.ID()
	if ia != ib {
		return ia < ib
	}
	return a < b
}

func (g *Graph) sortNodeKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool { return g.less(keys[i], keys[j]) })
}

func (g *Graph) sortedKeys(m map[string]*node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	g.sortNodeKeys(keys)
	return keys
}

type tarjan struct {
	g          *Graph
	next       int
	indices    map[string]int
	lowlink    map[string]int
	onStack    map[string]bool
	stack      []string
	components [][]string
}

func (t *tarjan) strongConnect(k string) {
	t.indices[k] = t.next
	t.lowlink[k] = t.next
	t.next++
	t.stack = append(t.stack, k)
	t.onStack[k] = true

	for _, dk := range t.g.sortedKeys(t.g.nodes[k].deps) {
		if _, seen := t.indices[dk]; !seen {
			t.strongConnect(dk)
			t.lowlink[k] = min(t.lowlink[k], t.lowlink[dk])
		} else if t.onStack[dk] {
			t.lowlink[k] = min(t.lowlink[k], t.indices[dk])
		}
	}

	if t.lowlink[k] != t.indices[k] {
		return
	}
	var members []string
	for {
		top := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[top] = false
		members = append(members, top)
		if top == k {
			break
		}
	}
	t.components = append(t.components, members)
}
