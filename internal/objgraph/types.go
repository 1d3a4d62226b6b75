package objgraph

import "github.com/specialistvlad/resgraph/internal/diag"

// Options control how Build treats edges to unknown targets.
type Options struct {
	// AllowMissingFiles adds an edge target that names an unknown file as a
	// new file node instead of reporting it. A file that does not exist yet
	// is a valid dependency.
	AllowMissingFiles bool
}

// Graph is an immutable dependency graph over objects and files together
// with its derived order and cycle reports. It is safe for concurrent reads.
type Graph struct {
	// nodes stores every node keyed by item key.
	nodes map[string]*node
	// order lists node keys, dependencies before dependents.
	order []string
	// position maps a key to its index in order.
	position map[string]int
	cycles   []*diag.CycleError
	// broken holds object ids that had at least one dependency dropped.
	broken map[string]struct{}
}

// node is a single vertex. deps are the nodes this node depends on;
// dependents are the nodes that depend on it.
type node struct {
	item       Item
	deps       map[string]*node
	dependents map[string]*node
}

func newNode(item Item) *node {
	return &node{
		item:       item,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
}
