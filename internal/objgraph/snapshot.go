package objgraph

import "github.com/specialistvlad/resgraph/internal/scene"

// SnapshotItems returns the object items of snap and an EdgeFunc deriving
// their edges from the snapshot's pointers and file links.
func SnapshotItems(snap *scene.Snapshot) ([]Item, EdgeFunc) {
	types := scene.NewTypeIndex(snap.Objects)
	items := make([]Item, 0, len(snap.Objects))
	for _, obj := range snap.Objects {
		items = append(items, ObjectItem(obj, types))
	}

	ptrs := snap.PointersByOwner()
	links := snap.FileLinksByOwner()
	edgesOf := func(item Item) []Edge {
		edges := make([]Edge, 0, len(ptrs[item.ID()])+len(links[item.ID()]))
		for _, p := range ptrs[item.ID()] {
			edges = append(edges, ObjectEdge(p.Target, p.Path))
		}
		for _, l := range links[item.ID()] {
			edges = append(edges, FileEdge(l.Path))
		}
		return edges
	}
	return items, edgesOf
}
