package reconcile

import (
	"path/filepath"

	"github.com/specialistvlad/resgraph/internal/fsutil"
	"github.com/specialistvlad/resgraph/internal/objgraph"
)

// AffectedObjects returns the sorted ids of every object that transitively
// depends on one of the changed files. Paths are normalized before they
// are matched against the graph's file nodes; paths the graph does not
// know are ignored.
func AffectedObjects(changed []string, g *objgraph.Graph) []string {
	if g == nil || len(changed) == 0 {
		return nil
	}
	keys := make([]string, 0, len(changed))
	for _, p := range normalizePaths(changed) {
		keys = append(keys, objgraph.FileKey(p))
	}

	var ids []string
	for _, k := range g.ReverseReachable(keys...) {
		if item, ok := g.Item(k); ok && item.Kind() == objgraph.KindObject {
			ids = append(ids, item.ID())
		}
	}
	return ids
}

func normalizePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		n, err := fsutil.NormalizePath("", p)
		if err != nil {
			n = filepath.Clean(p)
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
